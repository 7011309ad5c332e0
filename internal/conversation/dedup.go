package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedStore records provider webhook events that were already handled.
// Webhook delivery is at-least-once; the worker consults this store before
// enqueuing duplicate work.
type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("conversation: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if this provider event id was seen before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, channelType, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE channel_type = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, channelType, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("conversation: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts an event id, returning false if it already existed.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, channelType, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (channel_type, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, channelType, eventID)
	if err != nil {
		return false, fmt.Errorf("conversation: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
