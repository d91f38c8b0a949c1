package state

import (
	"context"
	"sync"

	"github.com/fastprodman/duxbank/internal/services/bank"
)

var _ Store = (*Memory)(nil)

// Memory keeps the last saved state in process. Used when persistence is off
// and in tests.
type Memory struct {
	mu    sync.Mutex
	state *bank.State
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, s bank.State) error {
	c := Clone(s)

	m.mu.Lock()
	m.state = &c
	m.mu.Unlock()

	return nil
}

func (m *Memory) Load(_ context.Context) (bank.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return bank.State{}, ErrNoState
	}

	return Clone(*m.state), nil
}

// Clone deep-copies s.
func Clone(s bank.State) bank.State {
	out := bank.State{
		Accounts: make([]bank.Account, len(s.Accounts)),
		Pool:     append([]int(nil), s.Pool...),
	}

	for i, a := range s.Accounts {
		a.Collection = append([]int(nil), a.Collection...)
		out.Accounts[i] = a
	}

	return out
}
