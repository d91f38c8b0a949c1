package bank

import (
	"fmt"
	"sync"
	"testing"

	"github.com/fastprodman/duxbank/internal/gacha"
)

// Many goroutines mix ledger, draw and scheduler operations; snapshots taken
// meanwhile must never observe a broken invariant.
func TestConcurrent_InvariantsHold(t *testing.T) {
	t.Parallel()

	b, err := New(gacha.Default(), WithRoller(NewSeededRoller(7)))
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}

	const users = 8

	ids := make([]UserID, users)
	for i := range ids {
		ids[i] = UserID(fmt.Sprintf("U%02d", i))
		mustJoin(t, b, ids[i])
	}

	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)

		go func(seed int, id UserID) {
			defer wg.Done()

			for n := range 200 {
				switch n % 7 {
				case 0:
					_, _ = b.Deposit(id, 15)
				case 1:
					_, _ = b.Withdraw(id, 40)
				case 2:
					b.PeriodicRegen()
				case 3:
					if seed == 0 {
						b.DailyReset()
					}
				default:
					_, _ = b.Pull(id, 1+(n+seed)%10)
				}
			}
		}(i, id)
	}

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	// Snapshots taken mid-flight must already satisfy the invariants.
	for {
		select {
		case <-done:
			mustConserve(t, b)
			return
		default:
			s := b.Snapshot()
			if err := b.CheckState(s); err != nil {
				t.Fatalf("mid-flight invariant broken: %v", err)
			}
		}
	}
}

func TestSequential_ConservationEveryStep(t *testing.T) {
	t.Parallel()

	b, err := New(gacha.Default(), WithRoller(NewSeededRoller(42)))
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}

	mustJoin(t, b, "A", "B", "C")

	for step := range 3000 {
		id := []UserID{"A", "B", "C"}[step%3]

		_, _ = b.Deposit(id, 10)
		_, _ = b.Pull(id, 1)

		mustConserve(t, b)
	}
}
