// Package sqlite persists bank state in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fastprodman/duxbank/internal/infra/pgutils"
	"github.com/fastprodman/duxbank/internal/repos/state"
	"github.com/fastprodman/duxbank/internal/services/bank"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ state.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	err = migrateUp(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// One writer; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored state with st in one transaction.
func (s *Store) Save(ctx context.Context, st bank.State) error {
	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, q := range []string{`DELETE FROM collections`, `DELETE FROM accounts`, `DELETE FROM pool`} {
			_, err := tx.ExecContext(ctx, q)
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
		}

		for tier, remaining := range st.Pool {
			_, err := tx.ExecContext(ctx, `INSERT INTO pool (tier, remaining) VALUES (?, ?)`, tier, remaining)
			if err != nil {
				return fmt.Errorf("insert pool tier %d: %w", tier, err)
			}
		}

		for _, a := range st.Accounts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO accounts (id, balance, free_pull) VALUES (?, ?, ?)`,
				string(a.ID), a.Balance, a.FreePull)
			if err != nil {
				return fmt.Errorf("insert account %s: %w", a.ID, err)
			}

			for tier, count := range a.Collection {
				if count == 0 {
					continue
				}

				_, err = tx.ExecContext(ctx,
					`INSERT INTO collections (user_id, tier, count) VALUES (?, ?, ?)`,
					string(a.ID), tier, count)
				if err != nil {
					return fmt.Errorf("insert collection %s/%d: %w", a.ID, tier, err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

func (s *Store) Load(ctx context.Context) (bank.State, error) {
	var st bank.State

	pool, err := s.loadPool(ctx)
	if err != nil {
		return st, err
	}

	if len(pool) == 0 {
		return st, state.ErrNoState
	}

	st.Pool = pool

	st.Accounts, err = s.loadAccounts(ctx, len(pool))
	if err != nil {
		return st, err
	}

	byID := make(map[bank.UserID]int, len(st.Accounts))
	for i, a := range st.Accounts {
		byID[a.ID] = i
	}

	err = s.loadCollections(ctx, &st, byID)
	if err != nil {
		return st, err
	}

	return st, nil
}

func (s *Store) loadAccounts(ctx context.Context, tiers int) ([]bank.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, balance, free_pull FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []bank.Account

	for rows.Next() {
		var a bank.Account

		err = rows.Scan(&a.ID, &a.Balance, &a.FreePull)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		a.Collection = make([]int, tiers)
		out = append(out, a)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return out, nil
}

func (s *Store) loadPool(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tier, remaining FROM pool ORDER BY tier`)
	if err != nil {
		return nil, fmt.Errorf("query pool: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var pool []int

	for rows.Next() {
		var tier, remaining int

		err = rows.Scan(&tier, &remaining)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}

		if tier != len(pool) {
			return nil, fmt.Errorf("pool tiers not contiguous at %d", tier)
		}

		pool = append(pool, remaining)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate pool: %w", err)
	}

	return pool, nil
}

func (s *Store) loadCollections(ctx context.Context, st *bank.State, byID map[bank.UserID]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, tier, count FROM collections`)
	if err != nil {
		return fmt.Errorf("query collections: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	for rows.Next() {
		var (
			id          bank.UserID
			tier, count int
		)

		err = rows.Scan(&id, &tier, &count)
		if err != nil {
			return fmt.Errorf("scan collection: %w", err)
		}

		i, ok := byID[id]
		if !ok || tier >= len(st.Pool) {
			return fmt.Errorf("collection row %s/%d has no account or tier", id, tier)
		}

		st.Accounts[i].Collection[tier] = count
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("iterate collections: %w", err)
	}

	return nil
}
