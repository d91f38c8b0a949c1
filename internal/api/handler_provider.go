package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/gacha"
	"github.com/fastprodman/duxbank/internal/games"
	"github.com/fastprodman/duxbank/internal/render"
	"github.com/fastprodman/duxbank/internal/services/bank"
)

// Bank is the engine surface the handlers use.
type Bank interface {
	Table() *gacha.Table
	AddUser(id bank.UserID) (bank.Account, error)
	Account(id bank.UserID) (bank.Account, error)
	GetBalance(id bank.UserID) (int, error)
	GetCollection(id bank.UserID) ([]int, error)
	Deposit(id bank.UserID, amount int) (int, error)
	Withdraw(id bank.UserID, amount int) (int, error)
	Pull(id bank.UserID, amount int) (bank.PullResult, error)
	Bet(id bank.UserID, wager int, game games.Game, args []string) (bank.BetResult, error)
	Pool() []int
	DailyReset()
	PeriodicRegen()
}

// History reads journaled events for a user, newest first.
type History interface {
	Recent(ctx context.Context, user string, limit int) ([]events.Event, error)
}

// Deps is everything the HTTP layer needs. Save and History are optional.
type Deps struct {
	Bank    Bank
	Games   *games.Registry
	Hub     *events.Hub
	Save    func(ctx context.Context) error
	History History
	Limits  RateLimit
}

// HandlerProvider exposes the bank over HTTP handlers.
type HandlerProvider struct {
	bank    Bank
	games   *games.Registry
	hub     *events.Hub
	save    func(ctx context.Context) error
	history History
}

func NewHandler(d Deps) *HandlerProvider {
	g := d.Games
	if g == nil {
		g = games.Default()
	}

	return &HandlerProvider{bank: d.Bank, games: g, hub: d.Hub, save: d.Save, history: d.History}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBankError maps engine errors to HTTP statuses.
func writeBankError(w http.ResponseWriter, err error) {
	var (
		ife *bank.InsufficientFundsError
		oor *bank.OutOfRangeError
	)

	switch {
	case errors.Is(err, bank.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, bank.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "already a member")
	case errors.As(err, &ife):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient funds",
			"required":  ife.Required,
			"available": ife.Available,
		})
	case errors.As(err, &oor):
		writeError(w, http.StatusBadRequest, oor.Error())
	case errors.Is(err, bank.ErrTierExhausted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, bank.ErrInvalidUserID),
		errors.Is(err, games.ErrBadArgs),
		errors.Is(err, games.ErrUnknownGame):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

var userIDRgx = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// parseUserIDFromPath reads `{userId}` from chi routes like:
//
//	GET  /users/{userId}/balance
//	POST /users/{userId}/pull
func parseUserIDFromPath(r *http.Request) (bank.UserID, error) {
	raw := chi.URLParam(r, "userId")
	if raw == "" {
		return "", fmt.Errorf("missing userId")
	}

	if !userIDRgx.MatchString(raw) {
		return "", fmt.Errorf("invalid userId %q", raw)
	}

	return bank.UserID(raw), nil
}

// decodeBody decodes an optional JSON body into dst. An empty body leaves
// dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

type amountRequest struct {
	Amount *int `json:"amount"`
}

type betRequest struct {
	Amount *int     `json:"amount"`
	Game   string   `json:"game"`
	Args   []string `json:"args"`
}

type tierCount struct {
	Tier  string `json:"tier"`
	Count int    `json:"count"`
}

type accountResponse struct {
	UserID     bank.UserID `json:"userId"`
	Balance    int         `json:"balance"`
	FreePull   bool        `json:"freePull"`
	Collection []tierCount `json:"collection"`
}

type outcomeResponse struct {
	Kind string      `json:"kind"`
	Roll int         `json:"roll"`
	Tier string      `json:"tier,omitempty"`
	From bank.UserID `json:"from,omitempty"`
}

type pullResponse struct {
	UserID   bank.UserID       `json:"userId"`
	FreeUsed bool              `json:"freeUsed"`
	Charged  int               `json:"charged"`
	Balance  int               `json:"balance"`
	Nuked    bool              `json:"nuked"`
	Outcomes []outcomeResponse `json:"outcomes"`
	Lines    []string          `json:"lines"`
	Error    string            `json:"error,omitempty"`
}

func (h *HandlerProvider) counts(c []int) []tierCount {
	t := h.bank.Table()
	out := make([]tierCount, 0, len(c))

	for i, n := range c {
		out = append(out, tierCount{Tier: t.Name(gacha.Tier(i)), Count: n})
	}

	return out
}

func (h *HandlerProvider) accountView(a bank.Account) accountResponse {
	return accountResponse{
		UserID:     a.ID,
		Balance:    a.Balance,
		FreePull:   a.FreePull,
		Collection: h.counts(a.Collection),
	}
}

// --- Handlers ---

// JoinHandler handles POST /users/{userId}
func (h *HandlerProvider) JoinHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := h.bank.AddUser(id)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.accountView(acc))
}

// GetAccountHandler handles GET /users/{userId}
func (h *HandlerProvider) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := h.bank.Account(id)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.accountView(acc))
}

// GetBalanceHandler handles GET /users/{userId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := h.bank.GetBalance(id)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": id, "balance": bal})
}

// GetCollectionHandler handles GET /users/{userId}/collection
func (h *HandlerProvider) GetCollectionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.bank.GetCollection(id)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":     id,
		"collection": h.counts(c),
		"text":       render.Collection(h.bank.Table(), c),
	})
}

// DepositHandler handles POST /users/{userId}/deposit
func (h *HandlerProvider) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.ledgerOp(w, r, h.bank.Deposit)
}

// WithdrawHandler handles POST /users/{userId}/withdraw
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.ledgerOp(w, r, h.bank.Withdraw)
}

func (h *HandlerProvider) ledgerOp(w http.ResponseWriter, r *http.Request, op func(bank.UserID, int) (int, error)) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req amountRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount required")
		return
	}

	bal, err := op(id, *req.Amount)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": id, "balance": bal})
}

// PullHandler handles POST /users/{userId}/pull
//
// A shortfall still reports the free unit's outcome alongside the 409.
func (h *HandlerProvider) PullHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req amountRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount := 1
	if req.Amount != nil {
		amount = *req.Amount
	}

	res, err := h.bank.Pull(id, amount)

	var ife *bank.InsufficientFundsError

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.pullView(id, res, ""))
	case errors.As(err, &ife) && len(res.Outcomes) > 0:
		writeJSON(w, http.StatusConflict, h.pullView(id, res, "insufficient funds"))
	default:
		writeBankError(w, err)
	}
}

func (h *HandlerProvider) pullView(id bank.UserID, res bank.PullResult, errMsg string) pullResponse {
	t := h.bank.Table()

	out := pullResponse{
		UserID:   id,
		FreeUsed: res.FreeUsed,
		Charged:  res.Charged,
		Balance:  res.Balance,
		Nuked:    res.Nuked(),
		Outcomes: make([]outcomeResponse, 0, len(res.Outcomes)),
		Lines:    render.Pull(t, res),
		Error:    errMsg,
	}

	for _, o := range res.Outcomes {
		or := outcomeResponse{Kind: o.Kind.String(), Roll: o.Roll, From: o.From}
		if o.Kind != bank.OutcomeNuke && !o.NothingToLose {
			or.Tier = t.Name(o.Tier)
		}

		out.Outcomes = append(out.Outcomes, or)
	}

	return out
}

// BetHandler handles POST /users/{userId}/bet
func (h *HandlerProvider) BetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req betRequest

	err = decodeBody(w, r, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount required")
		return
	}

	game, err := h.games.Lookup(req.Game)
	if err != nil {
		writeBankError(w, err)
		return
	}

	res, err := h.bank.Bet(id, *req.Amount, game, req.Args)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  id,
		"won":     res.Won,
		"detail":  res.Detail,
		"wager":   res.Wager,
		"balance": res.Balance,
	})
}

// HistoryHandler handles GET /users/{userId}/history?limit=n
func (h *HandlerProvider) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
	}

	evs, err := h.history.Recent(r.Context(), string(id), limit)
	if err != nil {
		writeBankError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"userId": id, "events": evs})
}

// PoolHandler handles GET /pool
func (h *HandlerProvider) PoolHandler(w http.ResponseWriter, _ *http.Request) {
	t := h.bank.Table()
	pool := h.bank.Pool()

	tiers := make([]map[string]any, 0, len(pool))
	for i, n := range pool {
		tiers = append(tiers, map[string]any{
			"tier":      t.Name(gacha.Tier(i)),
			"remaining": n,
			"unlimited": n < 0,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers, "text": render.Pool(t, pool)})
}

// DailyResetHandler handles POST /admin/daily-reset
func (h *HandlerProvider) DailyResetHandler(w http.ResponseWriter, _ *http.Request) {
	h.bank.DailyReset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RegenHandler handles POST /admin/regen
func (h *HandlerProvider) RegenHandler(w http.ResponseWriter, _ *http.Request) {
	h.bank.PeriodicRegen()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SaveHandler handles POST /admin/save
func (h *HandlerProvider) SaveHandler(w http.ResponseWriter, r *http.Request) {
	if h.save == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	err := h.save(r.Context())
	if err != nil {
		slog.Error("manual save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save failed")

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
