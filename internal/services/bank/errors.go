package bank

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownUser       = errors.New("unknown user")
	ErrAlreadyMember     = errors.New("already a member")
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOutOfRange        = errors.New("out of range")
	ErrTierExhausted     = errors.New("tier exhausted")
	ErrStateMismatch     = errors.New("state does not match tuning")
)

// InsufficientFundsError reports a charge the balance could not cover.
// It matches ErrInsufficientFunds with errors.Is.
type InsufficientFundsError struct {
	Required  int
	Available int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// OutOfRangeError reports an amount outside [Min, Max]. Max is zero when
// there is no upper bound. It matches ErrOutOfRange with errors.Is.
type OutOfRangeError struct {
	Min int
	Max int
	Got int
}

func (e *OutOfRangeError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("out of range: %d, minimum is %d", e.Got, e.Min)
	}

	return fmt.Sprintf("out of range: %d, allowed range is %d to %d", e.Got, e.Min, e.Max)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }
