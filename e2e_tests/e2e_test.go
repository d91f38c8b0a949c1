//go:build e2e

package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

const (
	timeout   = 5 * time.Second
	waitReady = 20 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

func baseURL() string {
	if u := os.Getenv("E2E_BASE_URL"); u != "" {
		return u
	}

	return "http://localhost:8080"
}

func TestE2E_LedgerFlow(t *testing.T) {
	waitUntilReady(t)

	user := uniqUser("ledger")

	t.Run("join_starts_with_default_balance", func(t *testing.T) {
		code, body := do(t, http.MethodPost, "/users/"+user, nil)
		if code != http.StatusCreated {
			t.Fatalf("join: want 201, got %d (%s)", code, body)
		}

		if got := getBalance(t, user); got != 100 {
			t.Fatalf("initial balance: want 100, got %d", got)
		}
	})

	t.Run("second_join_conflicts", func(t *testing.T) {
		code, body := do(t, http.MethodPost, "/users/"+user, nil)
		if code != http.StatusConflict {
			t.Fatalf("rejoin: want 409, got %d (%s)", code, body)
		}
	})

	t.Run("deposit_then_overdraw", func(t *testing.T) {
		code, body := do(t, http.MethodPost, "/users/"+user+"/deposit", map[string]int{"amount": 50})
		if code != http.StatusOK {
			t.Fatalf("deposit: want 200, got %d (%s)", code, body)
		}

		code, body = do(t, http.MethodPost, "/users/"+user+"/withdraw", map[string]int{"amount": 151})
		if code != http.StatusConflict {
			t.Fatalf("overdraw: want 409, got %d (%s)", code, body)
		}

		if got := getBalance(t, user); got != 150 {
			t.Fatalf("after overdraw: want 150, got %d", got)
		}
	})

	t.Run("negative_amount_rejected", func(t *testing.T) {
		code, _ := do(t, http.MethodPost, "/users/"+user+"/deposit", map[string]int{"amount": -1})
		if code != http.StatusBadRequest {
			t.Fatalf("negative deposit: want 400, got %d", code)
		}
	})
}

func TestE2E_PullAndValidation(t *testing.T) {
	waitUntilReady(t)

	user := uniqUser("pull")

	code, body := do(t, http.MethodPost, "/users/"+user, nil)
	if code != http.StatusCreated {
		t.Fatalf("join: want 201, got %d (%s)", code, body)
	}

	t.Run("first_pull_is_free", func(t *testing.T) {
		code, body := do(t, http.MethodPost, "/users/"+user+"/pull", map[string]int{"amount": 1})
		if code != http.StatusOK {
			t.Fatalf("pull: want 200, got %d (%s)", code, body)
		}

		var res struct {
			FreeUsed bool `json:"freeUsed"`
			Charged  int  `json:"charged"`
			Outcomes []struct {
				Kind string `json:"kind"`
			} `json:"outcomes"`
		}

		err := json.Unmarshal([]byte(body), &res)
		if err != nil {
			t.Fatalf("decode pull: %v", err)
		}

		if !res.FreeUsed || res.Charged != 0 || len(res.Outcomes) != 1 {
			t.Fatalf("unexpected pull result %s", body)
		}
	})

	t.Run("pull_amount_out_of_range", func(t *testing.T) {
		code, _ := do(t, http.MethodPost, "/users/"+user+"/pull", map[string]int{"amount": 11})
		if code != http.StatusBadRequest {
			t.Fatalf("pull 11: want 400, got %d", code)
		}
	})

	t.Run("unknown_game", func(t *testing.T) {
		code, _ := do(t, http.MethodPost, "/users/"+user+"/bet", map[string]any{"amount": 1, "game": "roulette"})
		if code != http.StatusBadRequest {
			t.Fatalf("unknown game: want 400, got %d", code)
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		code, _ := do(t, http.MethodGet, "/users/"+uniqUser("ghost")+"/balance", nil)
		if code != http.StatusNotFound {
			t.Fatalf("ghost: want 404, got %d", code)
		}
	})

	t.Run("invalid_user_id", func(t *testing.T) {
		code, _ := do(t, http.MethodGet, "/users/bad%20id/balance", nil)
		if code != http.StatusBadRequest {
			t.Fatalf("bad id: want 400, got %d", code)
		}
	})
}

/* -------------------- helpers -------------------- */

func do(t *testing.T, method, path string, body any) (int, string) {
	t.Helper()

	var rdr io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

func getBalance(t *testing.T, user string) int {
	t.Helper()

	code, body := do(t, http.MethodGet, "/users/"+user+"/balance", nil)
	if code != http.StatusOK {
		t.Fatalf("GET balance: want 200, got %d (%s)", code, body)
	}

	var payload struct {
		UserID  string `json:"userId"`
		Balance int    `json:"balance"`
	}

	err := json.Unmarshal([]byte(body), &payload)
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}

	if payload.UserID != user {
		t.Fatalf("userId mismatch: want %s, got %s", user, payload.UserID)
	}

	return payload.Balance
}

// waitUntilReady polls /healthz until it answers 200 or times out.
func waitUntilReady(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	u := baseURL() + "/healthz"

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", u, waitReady)
		case <-tick.C:
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)

			resp, err := httpClient.Do(req)
			if err != nil {
				continue
			}

			_ = resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func uniqUser(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
