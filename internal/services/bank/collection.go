package bank

import (
	"fmt"
	"log/slog"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/gacha"
)

// GetCollection returns a copy of the user's per-tier counts.
func (b *Bank) GetCollection(id UserID) ([]int, error) {
	var out []int

	err := b.withAccount(id, func(a *account) error {
		out = make([]int, len(a.collection))
		copy(out, a.collection)

		return nil
	})

	return out, err
}

// Pool returns a copy of the remaining supply per tier. Negative means unlimited.
func (b *Bank) Pool() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.poolMu.Lock()
	defer b.poolMu.Unlock()

	out := make([]int, len(b.pool))
	copy(out, b.pool)

	return out
}

// AddToCollection gives the user one unit of tier, taken from the pool.
// Fails with ErrTierExhausted when a finite tier has no stock left.
func (b *Bank) AddToCollection(id UserID, tier gacha.Tier) error {
	if !b.table.Valid(tier) {
		return &OutOfRangeError{Min: 0, Max: int(b.table.Top()), Got: int(tier)}
	}

	ok, err := b.takeFromPool(id, tier)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrTierExhausted, b.table.Name(tier))
	}

	return nil
}

// takeFromPool moves one unit of tier from the pool to the user. It reports
// false, without mutating, when a finite tier is exhausted.
func (b *Bank) takeFromPool(id UserID, tier gacha.Tier) (bool, error) {
	var took bool

	err := b.withAccount(id, func(a *account) error {
		b.poolMu.Lock()
		defer b.poolMu.Unlock()

		switch {
		case b.pool[tier] < 0:
		case b.pool[tier] > 0:
			b.pool[tier]--
		default:
			return nil
		}

		a.collection[tier]++
		took = true

		return nil
	})

	return took, err
}

// RemoveBest takes away the user's rarest item. Finite units go back to the
// pool. It reports false when the collection is empty.
func (b *Bank) RemoveBest(id UserID) (gacha.Tier, bool, error) {
	var (
		tier    gacha.Tier
		removed bool
	)

	err := b.withAccount(id, func(a *account) error {
		for t := len(a.collection) - 1; t >= 0; t-- {
			if a.collection[t] == 0 {
				continue
			}

			a.collection[t]--
			tier, removed = gacha.Tier(t), true

			b.poolMu.Lock()
			if b.pool[t] >= 0 {
				b.pool[t]++
			}
			b.poolMu.Unlock()

			return nil
		}

		return nil
	})

	return tier, removed, err
}

// Nuke empties every collection and refills the pool.
func (b *Bank) Nuke() {
	b.mu.Lock()

	for _, a := range b.accounts {
		clear(a.collection)
	}

	copy(b.pool, b.table.InitialSupply())

	n := len(b.accounts)

	b.mu.Unlock()

	slog.Info("pool nuked", "accounts", n)
}

func (b *Bank) HasFreePull(id UserID) (bool, error) {
	var free bool

	err := b.withAccount(id, func(a *account) error {
		free = a.freePull
		return nil
	})

	return free, err
}

func (b *Bank) SetFreePull(id UserID, value bool) error {
	return b.withAccount(id, func(a *account) error {
		a.freePull = value
		return nil
	})
}

func (b *Bank) SetFreePullAll(value bool) {
	b.eachAccount(func(a *account) { a.freePull = value })
}

// DailyReset makes the free pull available to everyone again.
func (b *Bank) DailyReset() {
	b.SetFreePullAll(true)

	slog.Info("daily free pulls reset")
	b.publish(events.New(events.KindDailyReset, ""))
}

// PeriodicRegen runs Regen on behalf of the scheduler.
func (b *Bank) PeriodicRegen() {
	raised := b.Regen()
	if raised > 0 {
		b.publish(events.New(events.KindRegen, "").WithAmount(int64(raised)))
	}
}
