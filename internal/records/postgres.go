package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the durable Store backed by the action_executions table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Executed(ctx context.Context, messageUID, actionKind string) (bool, error) {
	var executed bool
	err := s.pool.QueryRow(ctx,
		`SELECT executed FROM action_executions WHERE message_uid = $1 AND action_kind = $2`,
		messageUID, actionKind).Scan(&executed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query action execution: %w", err)
	}
	return executed, nil
}

func (s *PGStore) MarkExecuted(ctx context.Context, messageUID, actionKind string) error {
	// Set-once: a lost race merely re-runs an idempotent approve.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO action_executions (message_uid, action_kind, executed)
		 VALUES ($1, $2, TRUE)
		 ON CONFLICT (message_uid, action_kind) DO NOTHING`,
		messageUID, actionKind)
	if err != nil {
		return fmt.Errorf("insert action execution: %w", err)
	}
	return nil
}
