// Package banktest provides deterministic helpers for tests that drive the bank.
package banktest

import (
	"fmt"
	"sync"
)

// Scripted returns preset rolls in order and panics when they run out, so a
// test that consumes more randomness than it planned fails loudly.
type Scripted struct {
	mu    sync.Mutex
	rolls []int
	maxes []int
}

func NewScripted(rolls ...int) *Scripted {
	return &Scripted{rolls: rolls}
}

// Push appends more rolls.
func (s *Scripted) Push(rolls ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rolls = append(s.rolls, rolls...)
}

func (s *Scripted) Roll(max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rolls) == 0 {
		panic(fmt.Sprintf("scripted roller exhausted (max %d)", max))
	}

	r := s.rolls[0]
	s.rolls = s.rolls[1:]
	s.maxes = append(s.maxes, max)

	if r < 1 || r > max {
		panic(fmt.Sprintf("scripted roll %d outside [1,%d]", r, max))
	}

	return r
}

// Remaining is the number of unused rolls.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rolls)
}

// Maxes returns the max argument of every roll made so far.
func (s *Scripted) Maxes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, len(s.maxes))
	copy(out, s.maxes)

	return out
}
