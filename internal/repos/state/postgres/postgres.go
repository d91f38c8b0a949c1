package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/duxbank/internal/infra/pgutils"
	"github.com/fastprodman/duxbank/internal/repos/state"
	"github.com/fastprodman/duxbank/internal/services/bank"
)

var _ state.Store = (*stateRepo)(nil)

type stateRepo struct{ db *sql.DB }

func New(db *sql.DB) *stateRepo {
	return &stateRepo{db: db}
}

// Save replaces the stored state in one transaction. Accounts are upserted,
// accounts missing from st are deleted, collections and pool are rewritten.
func (r *stateRepo) Save(ctx context.Context, st bank.State) error {
	ids := make([]string, 0, len(st.Accounts))
	for _, a := range st.Accounts {
		ids = append(ids, string(a.ID))
	}

	err := pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE NOT (id = ANY($1))`, ids)
		if err != nil {
			return fmt.Errorf("delete stale accounts: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM collections`)
		if err != nil {
			return fmt.Errorf("clear collections: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM pool`)
		if err != nil {
			return fmt.Errorf("clear pool: %w", err)
		}

		for tier, remaining := range st.Pool {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO pool (tier, remaining)
				VALUES ($1, $2)
			`, tier, remaining)
			if err != nil {
				return fmt.Errorf("insert pool tier %d: %w", tier, err)
			}
		}

		for _, a := range st.Accounts {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO accounts (id, balance, free_pull, updated_at)
				VALUES ($1, $2, $3, now())
				ON CONFLICT (id) DO UPDATE
				SET balance = EXCLUDED.balance,
				    free_pull = EXCLUDED.free_pull,
				    updated_at = EXCLUDED.updated_at
			`, string(a.ID), a.Balance, a.FreePull)
			if err != nil {
				return fmt.Errorf("upsert account %s: %w", a.ID, err)
			}

			for tier, count := range a.Collection {
				if count == 0 {
					continue
				}

				_, err = tx.ExecContext(ctx, `
					INSERT INTO collections (user_id, tier, count)
					VALUES ($1, $2, $3)
				`, string(a.ID), tier, count)
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

func (r *stateRepo) Load(ctx context.Context) (bank.State, error) {
	var st bank.State

	err := pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		pool, err := loadPool(ctx, tx)
		if err != nil {
			return err
		}

		if len(pool) == 0 {
			return state.ErrNoState
		}

		st.Pool = pool

		st.Accounts, err = loadAccounts(ctx, tx, len(pool))
		if err != nil {
			return err
		}

		return loadCollections(ctx, tx, &st)
	})
	if err != nil {
		return bank.State{}, fmt.Errorf("load state: %w", err)
	}

	return st, nil
}

func loadPool(ctx context.Context, tx *sql.Tx) ([]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT tier, remaining FROM pool ORDER BY tier`)
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

func loadAccounts(ctx context.Context, tx *sql.Tx, tiers int) ([]bank.Account, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, balance, free_pull FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []bank.Account

	for rows.Next() {
		var (
			id      string
			balance int64
			free    bool
		)

		err = rows.Scan(&id, &balance, &free)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		out = append(out, bank.Account{
			ID:         bank.UserID(id),
			Balance:    int(balance),
			Collection: make([]int, tiers),
			FreePull:   free,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return out, nil
}

func loadCollections(ctx context.Context, tx *sql.Tx, st *bank.State) error {
	idx := make(map[string]int, len(st.Accounts))
	for i, a := range st.Accounts {
		idx[string(a.ID)] = i
	}

	rows, err := tx.QueryContext(ctx, `SELECT user_id, tier, count FROM collections`)
	if err != nil {
		return fmt.Errorf("query collections: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	for rows.Next() {
		var (
			id          string
			tier, count int
		)

		err = rows.Scan(&id, &tier, &count)
		if err != nil {
			return fmt.Errorf("scan collection: %w", err)
		}

		i, ok := idx[id]
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
