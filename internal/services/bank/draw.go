package bank

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/gacha"
)

// Pull buys amount draws for the user.
//
// When the daily free pull is available the first unit costs nothing and the
// flag is cleared, whatever happens to the paid units. If the balance cannot
// cover the paid units Pull returns *InsufficientFundsError, charges nothing,
// and the result still holds the free unit's outcome when one was drawn.
// A nuke ends the batch; remaining units are not refunded.
func (b *Bank) Pull(id UserID, amount int) (PullResult, error) {
	if amount < b.tuning.PullMin || amount > b.tuning.PullMax {
		return PullResult{}, &OutOfRangeError{Min: b.tuning.PullMin, Max: b.tuning.PullMax, Got: amount}
	}

	var (
		res    PullResult
		payErr error
	)

	err := b.withAccount(id, func(a *account) error {
		paid := amount
		if a.freePull {
			a.freePull = false
			res.FreeUsed = true
			paid--
		}

		cost := paid * b.tuning.PullCost
		if a.balance < cost {
			payErr = &InsufficientFundsError{Required: cost, Available: a.balance}
			res.Balance = a.balance

			return nil
		}

		a.balance -= cost
		res.Charged = cost
		res.Balance = a.balance

		return nil
	})
	if err != nil {
		return PullResult{}, err
	}

	draws := amount
	if payErr != nil {
		draws = 0
		if res.FreeUsed {
			draws = 1
		}
	}

	for i := range draws {
		var (
			o   DrawOutcome
			err error
		)

		if i == 0 && res.FreeUsed {
			o, err = b.FreePull(id)
		} else {
			o, err = b.drawStep(id)
		}

		if err != nil {
			return res, fmt.Errorf("draw: %w", err)
		}

		res.Outcomes = append(res.Outcomes, o)

		if o.Kind == OutcomeNuke {
			break
		}
	}

	slog.Debug("pull done", "user", id, "amount", amount, "free", res.FreeUsed,
		"charged", res.Charged, "draws", len(res.Outcomes))

	return res, payErr
}

// FreePull performs one draw step with no cost and no free-pull bookkeeping.
// Pull draws its free unit through it; the scheduler may call it directly to
// grant a scripted daily draw.
func (b *Bank) FreePull(id UserID) (DrawOutcome, error) {
	if !b.IsMember(id) {
		return DrawOutcome{}, ErrUnknownUser
	}

	return b.drawStep(id)
}

func (b *Bank) drawStep(id UserID) (DrawOutcome, error) {
	roll := b.roller.Roll(b.tuning.RollMax)

	switch {
	case roll == b.tuning.NukeRoll:
		b.Nuke()
		b.publish(events.New(events.KindNuke, string(id)))

		return DrawOutcome{Kind: OutcomeNuke, Roll: roll}, nil

	case roll < b.tuning.LossBelow:
		tier, removed, err := b.RemoveBest(id)
		if err != nil {
			return DrawOutcome{}, err
		}

		if !removed {
			return DrawOutcome{Kind: OutcomeLoss, Roll: roll, NothingToLose: true}, nil
		}

		b.publish(events.New(events.KindLoss, string(id)).WithTier(int(tier)))

		return DrawOutcome{Kind: OutcomeLoss, Roll: roll, Tier: tier, Rarest: tier == b.table.Top()}, nil
	}

	tier, ok := b.table.Lookup(roll)
	if !ok {
		return DrawOutcome{}, fmt.Errorf("roll %d maps to no tier", roll)
	}

	return b.acquireOrSteal(id, tier, roll)
}

func (b *Bank) acquireOrSteal(id UserID, tier gacha.Tier, roll int) (DrawOutcome, error) {
	took, err := b.takeFromPool(id, tier)
	if err != nil {
		return DrawOutcome{}, err
	}

	if took {
		b.publish(events.New(events.KindAcquire, string(id)).WithTier(int(tier)))
		return DrawOutcome{Kind: OutcomeAcquire, Roll: roll, Tier: tier}, nil
	}

	// Exhausted tier: the transfer between two accounts runs under the
	// exclusive world lock, which also excludes every pool update.
	b.mu.Lock()

	thief, ok := b.accounts[id]
	if !ok {
		b.mu.Unlock()
		return DrawOutcome{}, ErrUnknownUser
	}

	if b.pool[tier] != 0 {
		// A unit came back between the two locks.
		if b.pool[tier] > 0 {
			b.pool[tier]--
		}

		thief.collection[tier]++
		b.mu.Unlock()

		b.publish(events.New(events.KindAcquire, string(id)).WithTier(int(tier)))

		return DrawOutcome{Kind: OutcomeAcquire, Roll: roll, Tier: tier}, nil
	}

	victims := make([]*account, 0)
	for uid, a := range b.accounts {
		if uid != id && a.collection[tier] > 0 {
			victims = append(victims, a)
		}
	}

	if len(victims) == 0 {
		b.mu.Unlock()

		b.publish(events.New(events.KindExhausted, string(id)).WithTier(int(tier)))

		return DrawOutcome{Kind: OutcomeExhausted, Roll: roll, Tier: tier}, nil
	}

	sort.Slice(victims, func(i, j int) bool { return victims[i].id < victims[j].id })

	pick := b.roller.Roll(len(victims)) - 1
	if pick < 0 || pick >= len(victims) {
		pick = 0
	}

	victim := victims[pick]
	victim.collection[tier]--
	thief.collection[tier]++

	b.mu.Unlock()

	slog.Debug("item stolen", "user", id, "from", victim.id, "tier", tier)
	b.publish(events.New(events.KindSteal, string(id)).WithTier(int(tier)).WithFrom(string(victim.id)))

	return DrawOutcome{Kind: OutcomeSteal, Roll: roll, Tier: tier, From: victim.id}, nil
}
