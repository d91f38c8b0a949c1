package bank

import (
	"math/rand/v2"
	"sync"
)

// Roller supplies uniform integer rolls in [1, max]. Implementations must be
// safe for concurrent use.
type Roller interface {
	Roll(max int) int
}

type randRoller struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandRoller returns a roller backed by the runtime-seeded global source.
func NewRandRoller() Roller {
	return globalRoller{}
}

// NewSeededRoller returns a reproducible roller.
func NewSeededRoller(seed uint64) Roller {
	return &randRoller{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *randRoller) Roll(max int) int {
	if max < 1 {
		return 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.r.IntN(max) + 1
}

type globalRoller struct{}

func (globalRoller) Roll(max int) int {
	if max < 1 {
		return 1
	}

	return rand.IntN(max) + 1
}
