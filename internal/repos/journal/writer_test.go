package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/duxbank/internal/events"
)

type fakeJournal struct {
	mu   sync.Mutex
	seen map[string]bool
	fail bool
	got  []events.Event
}

func (f *fakeJournal) Insert(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return errors.New("db down")
	}

	if f.seen[e.ID.String()] {
		return ErrDuplicateEvent
	}

	f.seen[e.ID.String()] = true
	f.got = append(f.got, e)

	return nil
}

func TestRun_DrainsUntilClosed(t *testing.T) {
	t.Parallel()

	j := &fakeJournal{seen: map[string]bool{}}
	evs := make(chan events.Event, 4)

	first := events.New(events.KindJoin, "U1")
	evs <- first
	evs <- first
	evs <- events.New(events.KindDeposit, "U1").WithAmount(5)
	close(evs)

	err := Run(t.Context(), j, evs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(j.got) != 2 || j.got[1].Amount != 5 {
		t.Fatalf("unexpected journal %+v", j.got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	j := &fakeJournal{seen: map[string]bool{}, fail: true}
	evs := make(chan events.Event)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- Run(ctx, j, evs) }()

	evs <- events.New(events.KindNuke, "U1")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRun_DrainsBufferedOnCancel(t *testing.T) {
	t.Parallel()

	j := &fakeJournal{seen: map[string]bool{}}
	evs := make(chan events.Event, 3)

	evs <- events.New(events.KindDeposit, "U1").WithAmount(1)
	evs <- events.New(events.KindDeposit, "U1").WithAmount(2)
	evs <- events.New(events.KindDeposit, "U1").WithAmount(3)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := Run(ctx, j, evs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(j.got) != 3 {
		t.Fatalf("want 3 journaled events after cancel, got %d", len(j.got))
	}

	for i, e := range j.got {
		if e.Amount != int64(i+1) {
			t.Fatalf("event %d out of order: %+v", i, e)
		}
	}
}
