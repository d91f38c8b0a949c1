package state

import (
	"context"
	"errors"

	"github.com/fastprodman/duxbank/internal/services/bank"
)

var ErrNoState = errors.New("no saved state")

// Store persists whole-bank snapshots. Save replaces whatever was stored
// before; Load returns ErrNoState when nothing was ever saved.
type Store interface {
	Save(ctx context.Context, s bank.State) error
	Load(ctx context.Context) (bank.State, error)
}
