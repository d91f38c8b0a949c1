// Package snapshot stores bank state as a zstd-compressed file: one JSON
// header line followed by the JSON body.
package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/fastprodman/duxbank/internal/repos/state"
	"github.com/fastprodman/duxbank/internal/services/bank"
)

const Version = 1

var ErrBadVersion = errors.New("unsupported snapshot version")

var _ state.Store = (*Store)(nil)

type Header struct {
	Version  int       `json:"version"`
	SavedAt  time.Time `json:"saved_at"`
	Accounts int       `json:"accounts"`
}

type accountV1 struct {
	ID         string `json:"id"`
	Balance    int    `json:"balance"`
	Collection []int  `json:"collection"`
	FreePull   bool   `json:"free_pull"`
}

type bodyV1 struct {
	Accounts []accountV1 `json:"accounts"`
	Pool     []int       `json:"pool"`
}

// Store writes snapshots to a single path. Writes go to a temp file in the
// same directory and are renamed into place.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Save(ctx context.Context, st bank.State) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = Write(s.path, st, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context) (bank.State, error) {
	err := ctx.Err()
	if err != nil {
		return bank.State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, st, err := Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return bank.State{}, state.ErrNoState
	}

	if err != nil {
		return bank.State{}, fmt.Errorf("read snapshot: %w", err)
	}

	return st, nil
}

// Write encodes st to path atomically.
func Write(path string, st bank.State, at time.Time) (retErr error) {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if retErr != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	bw := bufio.NewWriter(enc)

	hb, err := json.Marshal(Header{Version: Version, SavedAt: at, Accounts: len(st.Accounts)})
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	_, err = bw.Write(append(hb, '\n'))
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err = json.NewEncoder(bw).Encode(toBody(st))
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}

	err = bw.Flush()
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}

	err = f.Sync()
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	err = os.Rename(f.Name(), path)
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// Read decodes the snapshot at path.
func Read(path string) (Header, bank.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, bank.State{}, err
	}
	//nolint:errcheck
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, bank.State{}, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReader(dec)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return Header{}, bank.State{}, fmt.Errorf("read header: %w", err)
	}

	var h Header

	err = json.Unmarshal(line, &h)
	if err != nil {
		return Header{}, bank.State{}, fmt.Errorf("decode header: %w", err)
	}

	if h.Version != Version {
		return h, bank.State{}, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}

	var body bodyV1

	err = json.NewDecoder(br).Decode(&body)
	if err != nil {
		return h, bank.State{}, fmt.Errorf("decode body: %w", err)
	}

	return h, fromBody(body), nil
}

func toBody(st bank.State) bodyV1 {
	b := bodyV1{
		Accounts: make([]accountV1, 0, len(st.Accounts)),
		Pool:     st.Pool,
	}

	for _, a := range st.Accounts {
		b.Accounts = append(b.Accounts, accountV1{
			ID:         string(a.ID),
			Balance:    a.Balance,
			Collection: a.Collection,
			FreePull:   a.FreePull,
		})
	}

	return b
}

func fromBody(b bodyV1) bank.State {
	st := bank.State{
		Accounts: make([]bank.Account, 0, len(b.Accounts)),
		Pool:     b.Pool,
	}

	for _, a := range b.Accounts {
		st.Accounts = append(st.Accounts, bank.Account{
			ID:         bank.UserID(a.ID),
			Balance:    a.Balance,
			Collection: a.Collection,
			FreePull:   a.FreePull,
		})
	}

	return st
}
