package bank

import (
	"log/slog"
	"math"

	"github.com/fastprodman/duxbank/internal/events"
)

func (b *Bank) GetBalance(id UserID) (int, error) {
	var balance int

	err := b.withAccount(id, func(a *account) error {
		balance = a.balance
		return nil
	})

	return balance, err
}

// Deposit adds amount to the balance and returns the new balance. A deposit
// that would overflow the balance is rejected with *OutOfRangeError.
func (b *Bank) Deposit(id UserID, amount int) (int, error) {
	if amount < 0 {
		return 0, &OutOfRangeError{Min: 0, Got: amount}
	}

	var balance int

	err := b.withAccount(id, func(a *account) error {
		if amount > math.MaxInt-a.balance {
			return &OutOfRangeError{Min: 0, Max: math.MaxInt - a.balance, Got: amount}
		}

		a.balance += amount
		balance = a.balance

		return nil
	})
	if err != nil {
		return 0, err
	}

	b.publish(events.New(events.KindDeposit, string(id)).WithAmount(int64(amount)))

	return balance, nil
}

// Withdraw removes amount from the balance and returns the new balance.
// A withdrawal the balance cannot cover fails without touching it.
func (b *Bank) Withdraw(id UserID, amount int) (int, error) {
	if amount < 0 {
		return 0, &OutOfRangeError{Min: 0, Got: amount}
	}

	var balance int

	err := b.withAccount(id, func(a *account) error {
		if a.balance < amount {
			return &InsufficientFundsError{Required: amount, Available: a.balance}
		}

		a.balance -= amount
		balance = a.balance

		return nil
	})
	if err != nil {
		return 0, err
	}

	b.publish(events.New(events.KindWithdraw, string(id)).WithAmount(int64(amount)))

	return balance, nil
}

// Regen tops up low balances: at or below the threshold they gain a flat
// step, between the threshold and the ceiling they snap to the ceiling.
// Balances never decrease. It returns how many accounts were raised.
func (b *Bank) Regen() int {
	raised := 0

	b.eachAccount(func(a *account) {
		next := b.regenBalance(a.balance)
		if next != a.balance {
			a.balance = next
			raised++
		}
	})

	slog.Debug("regen applied", "raised", raised)

	return raised
}

func (b *Bank) regenBalance(balance int) int {
	r := b.tuning.Regen

	switch {
	case balance <= r.Threshold:
		return min(balance+r.Step, r.Ceiling)
	case balance < r.Ceiling:
		return r.Ceiling
	default:
		return balance
	}
}
