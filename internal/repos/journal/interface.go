package journal

import (
	"context"
	"errors"

	"github.com/fastprodman/duxbank/internal/events"
)

var ErrDuplicateEvent = errors.New("duplicate event")

// Journal is an append-only record of engine events.
type Journal interface {
	Insert(ctx context.Context, e events.Event) error
}
