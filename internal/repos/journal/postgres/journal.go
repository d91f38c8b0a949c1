package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/duxbank/internal/events"
	"github.com/fastprodman/duxbank/internal/repos/journal"
)

var _ journal.Journal = (*journalRepo)(nil)

type journalRepo struct{ db *sql.DB }

func New(db *sql.DB) *journalRepo {
	return &journalRepo{db: db}
}

func (r *journalRepo) Insert(ctx context.Context, e events.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO journal (event_id, at, kind, user_id, tier, from_user, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID.String(), e.At, string(e.Kind), e.User, e.Tier, e.From, e.Amount)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return journal.ErrDuplicateEvent
			}
		}

		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// Recent returns the newest events for user, newest first.
func (r *journalRepo) Recent(ctx context.Context, user string, limit int) ([]events.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, at, kind, user_id, tier, from_user, amount
		FROM journal
		WHERE user_id = $1
		ORDER BY at DESC
		LIMIT $2
	`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	var out []events.Event

	for rows.Next() {
		var (
			e    events.Event
			id   string
			kind string
			at   time.Time
		)

		err = rows.Scan(&id, &at, &kind, &e.User, &e.Tier, &e.From, &e.Amount)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		err = e.ID.UnmarshalText([]byte(id))
		if err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}

		e.At = at.UTC()
		e.Kind = events.Kind(kind)
		out = append(out, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}

	return out, nil
}
