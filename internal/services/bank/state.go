package bank

import (
	"fmt"
	"sort"
)

// State is the persistable form of the bank: every account plus the pool.
type State struct {
	Accounts []Account
	Pool     []int
}

// Snapshot copies the whole bank. Accounts are sorted by id.
func (b *Bank) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := State{
		Accounts: make([]Account, 0, len(b.accounts)),
		Pool:     make([]int, len(b.pool)),
	}

	copy(s.Pool, b.pool)

	for _, a := range b.accounts {
		s.Accounts = append(s.Accounts, a.view())
	}

	sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].ID < s.Accounts[j].ID })

	return s
}

// Restore replaces the bank contents with s. The state must fit the tier
// table and conserve every finite tier; otherwise nothing changes.
func (b *Bank) Restore(s State) error {
	err := b.CheckState(s)
	if err != nil {
		return err
	}

	accounts := make(map[UserID]*account, len(s.Accounts))
	for _, acc := range s.Accounts {
		c := make([]int, len(acc.Collection))
		copy(c, acc.Collection)

		accounts[acc.ID] = &account{
			id:         acc.ID,
			balance:    acc.Balance,
			collection: c,
			freePull:   acc.FreePull,
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.accounts = accounts
	copy(b.pool, s.Pool)

	return nil
}

// CheckState validates s against the tier table and the conservation rule.
func (b *Bank) CheckState(s State) error {
	n := b.table.Len()
	if len(s.Pool) != n {
		return fmt.Errorf("%w: pool has %d tiers, want %d", ErrStateMismatch, len(s.Pool), n)
	}

	held := make([]int, n)
	seen := make(map[UserID]struct{}, len(s.Accounts))

	for _, acc := range s.Accounts {
		if acc.ID == "" {
			return fmt.Errorf("%w: empty account id", ErrStateMismatch)
		}

		if _, dup := seen[acc.ID]; dup {
			return fmt.Errorf("%w: duplicate account %s", ErrStateMismatch, acc.ID)
		}

		seen[acc.ID] = struct{}{}

		if acc.Balance < 0 {
			return fmt.Errorf("%w: account %s has negative balance %d", ErrStateMismatch, acc.ID, acc.Balance)
		}

		if len(acc.Collection) != n {
			return fmt.Errorf("%w: account %s has %d tiers, want %d", ErrStateMismatch, acc.ID, len(acc.Collection), n)
		}

		for t, c := range acc.Collection {
			if c < 0 {
				return fmt.Errorf("%w: account %s tier %d count %d", ErrStateMismatch, acc.ID, t, c)
			}

			held[t] += c
		}
	}

	initial := b.table.InitialSupply()
	for t := range n {
		switch {
		case initial[t] < 0 && s.Pool[t] >= 0:
			return fmt.Errorf("%w: tier %d is unlimited but pool holds %d", ErrStateMismatch, t, s.Pool[t])
		case initial[t] >= 0 && s.Pool[t] < 0:
			return fmt.Errorf("%w: tier %d is finite but pool is unlimited", ErrStateMismatch, t)
		case initial[t] >= 0 && s.Pool[t]+held[t] != initial[t]:
			return fmt.Errorf("%w: tier %d pool %d + held %d != supply %d",
				ErrStateMismatch, t, s.Pool[t], held[t], initial[t])
		}
	}

	return nil
}
