package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"casereview/internal/platform/database"
	dErrors "casereview/pkg/domain-errors"
	platformsync "casereview/pkg/platform/sync"
	"casereview/pkg/platform/tx"
)

// defaultTxTimeout bounds a unit of work whose context has no deadline.
const defaultTxTimeout = 5 * time.Second

// inMemoryStoreTx gives in-memory stores all-or-nothing writes: stores register
// compensations on the undo log in ctx and they run if fn fails.
type inMemoryStoreTx struct {
	timeout time.Duration
}

// NewInMemoryStoreTx returns the StoreTx used with in-memory stores.
func NewInMemoryStoreTx(timeout time.Duration) StoreTx {
	return &inMemoryStoreTx{timeout: timeout}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageTimeout, "transaction aborted: context cancelled")
	}
	if tx.HasUndoLog(ctx) {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, undo := tx.WithUndoLog(ctx)
	if err := fn(ctx); err != nil {
		undo.Rollback()
		return err
	}
	undo.Commit()
	return nil
}

// lockerFunc adapts a plain acquire function to Locker.
type lockerFunc func(ctx context.Context, key string) (func(), error)

func (f lockerFunc) Lock(ctx context.Context, key string) (func(), error) { return f(ctx, key) }

// NewLocalLocker returns an in-process Locker keyed by case id.
func NewLocalLocker() Locker {
	return lockerFunc(platformsync.NewKeyedMutex().Acquire)
}

// postgresStoreTx runs fn inside a database transaction carried by ctx; the
// Postgres stores join it through tx.ExecutorFrom.
type postgresStoreTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStoreTx returns the StoreTx used with the Postgres stores.
func NewPostgresStoreTx(db *sql.DB, timeout time.Duration) StoreTx {
	return &postgresStoreTx{db: db, timeout: timeout}
}

func (t *postgresStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorageTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", database.Translate(err))
	}
	defer func() {
		_ = sqlTx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", database.Translate(err))
	}
	return nil
}
