// Package bank is the dux ledger and gacha engine: accounts, balances,
// tiered collections, the shared pool and the draw rules.
//
// Locking: b.mu is the world lock. Single-account and pool operations hold it
// shared, then the account lock(s), then poolMu. Operations that touch many
// accounts at once (join, nuke, steal, snapshot, restore) hold it exclusively,
// so no partial transfer is ever observable.
package bank

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/gacha"
)

// UserID identifies a chat user.
type UserID string

// Account is a point-in-time copy of a user's account.
type Account struct {
	ID         UserID
	Balance    int
	Collection []int
	FreePull   bool
}

type account struct {
	mu         sync.Mutex
	id         UserID
	balance    int
	collection []int
	freePull   bool
}

func (a *account) view() Account {
	c := make([]int, len(a.collection))
	copy(c, a.collection)

	return Account{ID: a.id, Balance: a.balance, Collection: c, FreePull: a.freePull}
}

type Bank struct {
	tuning gacha.Tuning
	table  *gacha.Table
	roller Roller
	pub    events.Publisher

	mu       sync.RWMutex
	accounts map[UserID]*account

	poolMu sync.Mutex
	pool   []int
}

type Option func(*Bank)

// WithRoller replaces the random source used for draws, steals and bets.
func WithRoller(r Roller) Option {
	return func(b *Bank) { b.roller = r }
}

// WithPublisher sends engine events to p.
func WithPublisher(p events.Publisher) Option {
	return func(b *Bank) { b.pub = p }
}

// New creates an empty bank with a full pool.
func New(t gacha.Tuning, opts ...Option) (*Bank, error) {
	err := t.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate tuning: %w", err)
	}

	table, err := t.Table()
	if err != nil {
		return nil, fmt.Errorf("build tier table: %w", err)
	}

	b := &Bank{
		tuning:   t,
		table:    table,
		roller:   NewRandRoller(),
		pub:      events.Discard{},
		accounts: make(map[UserID]*account),
		pool:     table.InitialSupply(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

func (b *Bank) Table() *gacha.Table { return b.table }

func (b *Bank) Tuning() gacha.Tuning { return b.tuning }

// withAccount runs fn holding the world lock shared and the account lock.
func (b *Bank) withAccount(id UserID, fn func(a *account) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.accounts[id]
	if !ok {
		return ErrUnknownUser
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return fn(a)
}

// eachAccount runs fn for every account, one account lock at a time.
func (b *Bank) eachAccount(fn func(a *account)) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, a := range b.accounts {
		a.mu.Lock()
		fn(a)
		a.mu.Unlock()
	}
}

func (b *Bank) publish(evs ...events.Event) {
	for _, e := range evs {
		b.pub.Publish(e)
	}
}

// IsMember reports whether id has an account.
func (b *Bank) IsMember(id UserID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.accounts[id]

	return ok
}

// Members returns every account id, unordered.
func (b *Bank) Members() []UserID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]UserID, 0, len(b.accounts))
	for id := range b.accounts {
		out = append(out, id)
	}

	return out
}

// AddUser opens an account with the starting balance, an empty collection
// and the daily free pull available.
func (b *Bank) AddUser(id UserID) (Account, error) {
	if id == "" {
		return Account{}, ErrInvalidUserID
	}

	b.mu.Lock()

	if _, ok := b.accounts[id]; ok {
		b.mu.Unlock()
		return Account{}, ErrAlreadyMember
	}

	a := &account{
		id:         id,
		balance:    b.tuning.StartingBalance,
		collection: make([]int, b.table.Len()),
		freePull:   true,
	}
	b.accounts[id] = a
	view := a.view()

	b.mu.Unlock()

	slog.Info("account opened", "user", id, "balance", view.Balance)
	b.publish(events.New(events.KindJoin, string(id)).WithAmount(int64(view.Balance)))

	return view, nil
}

// Account returns a copy of the user's account.
func (b *Bank) Account(id UserID) (Account, error) {
	var out Account

	err := b.withAccount(id, func(a *account) error {
		out = a.view()
		return nil
	})

	return out, err
}
