package journal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fastprodman/duxbank/internal/events"
)

const insertTimeout = 5 * time.Second

// Run appends every event received on evs to j until ctx is done or evs is
// closed. Insert failures are logged and the event is dropped; duplicates
// are ignored. On cancel, events already buffered in evs are still written.
func Run(ctx context.Context, j Journal, evs <-chan events.Event) error {
	// Inserts outlive ctx so the final drain can still reach the database.
	insertBase := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			drain(insertBase, j, evs)
			return nil
		case e, ok := <-evs:
			if !ok {
				return nil
			}

			insert(insertBase, j, e)
		}
	}
}

// drain writes whatever is buffered in evs without waiting for more.
func drain(ctx context.Context, j Journal, evs <-chan events.Event) {
	n := 0

	defer func() {
		if n > 0 {
			slog.Info("journal drained on shutdown", "events", n)
		}
	}()

	for {
		select {
		case e, ok := <-evs:
			if !ok {
				return
			}

			insert(ctx, j, e)
			n++
		default:
			return
		}
	}
}

func insert(ctx context.Context, j Journal, e events.Event) {
	insCtx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	err := j.Insert(insCtx, e)

	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateEvent):
		slog.Debug("journal duplicate", "event", e.ID)
	default:
		slog.Error("journal insert failed", "event", e.ID, "kind", e.Kind, "error", err)
	}
}
