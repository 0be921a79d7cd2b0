// Package postgres keeps the audit outbox in the outbox table, next to the
// facts it relays, so both commit in one transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casereview/internal/platform/database"
	"casereview/pkg/platform/audit/outbox"
	"casereview/pkg/platform/sentinel"
	txcontext "casereview/pkg/platform/tx"
)

// maxBatch caps one fetch whatever the caller asks for.
const maxBatch = 1000

const (
	insertEntry = `INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	// SKIP LOCKED lets several relays share the table without waiting on
	// each other's batches. id breaks created_at ties so order is stable.
	selectPending = `SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, processed_at
FROM outbox
WHERE processed_at IS NULL
ORDER BY created_at, id
LIMIT $1
FOR UPDATE SKIP LOCKED`

	markProcessed = `UPDATE outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`

	countPending = `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`

	deleteProcessed = `DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes e within the transaction in ctx, if any.
func (s *Store) Append(ctx context.Context, e *outbox.Entry) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, insertEntry,
		e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append outbox entry %s: %w", e.ID, database.Translate(err))
	}
	return nil
}

func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, selectPending, min(limit, maxBatch))
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox entries: %w", database.Translate(err))
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pending outbox entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*outbox.Entry, error) {
	var (
		e         outbox.Entry
		processed sql.NullTime
	)
	if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &processed); err != nil {
		return nil, fmt.Errorf("scan outbox entry: %w", err)
	}
	if processed.Valid {
		e.ProcessedAt = &processed.Time
	}
	return &e, nil
}

// MarkProcessed fails with sentinel.ErrNotFound when id is unknown or was
// already marked.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := s.exec(ctx, markProcessed, id, at)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s processed: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox entry %s not pending: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, countPending).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", database.Translate(err))
	}
	return n, nil
}

// DeleteProcessedBefore drops entries published before cutoff and reports
// how many went.
func (s *Store) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.exec(ctx, deleteProcessed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return n, nil
}

// exec runs a statement and returns the affected row count.
func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, database.Translate(err)
	}
	return res.RowsAffected()
}
