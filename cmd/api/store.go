package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/duxbank/internal/config"
	"github.com/fastprodman/duxbank/internal/infra/pgutils"
	"github.com/fastprodman/duxbank/internal/repos/state"
	pgstate "github.com/fastprodman/duxbank/internal/repos/state/postgres"
	"github.com/fastprodman/duxbank/internal/repos/state/snapshot"
	"github.com/fastprodman/duxbank/internal/repos/state/sqlite"
	"github.com/fastprodman/duxbank/internal/services/bank"
	"github.com/fastprodman/duxbank/pkg/shutdownqueue"
)

// openPostgres opens the shared pool once and registers its close.
func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := pgutils.OpenDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	shutdownqueue.AddNamed("close postgres", func(context.Context) error {
		return db.Close()
	})

	return db, nil
}

// openStore builds the configured state store. db is non-nil when the
// backend is postgres so the journal can share the pool.
func openStore(ctx context.Context, cfg *apiConfig) (state.Store, *sql.DB, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}

		return pgstate.New(db), db, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}

		shutdownqueue.AddNamed("close sqlite", func(context.Context) error {
			return s.Close()
		})

		return s, nil, nil

	case config.BackendSnapshot:
		return snapshot.New(cfg.Snapshot.Path), nil, nil

	default:
		return state.NewMemory(), nil, nil
	}
}

// restore loads saved state into b. Missing state leaves b empty.
func restore(ctx context.Context, store state.Store, b *bank.Bank) error {
	st, err := store.Load(ctx)
	if errors.Is(err, state.ErrNoState) {
		slog.Info("no saved state, starting fresh")
		return nil
	}

	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	err = b.Restore(st)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	slog.Info("state restored", "accounts", len(st.Accounts))

	return nil
}
