// Package tx carries the active unit of work through a context so stores can
// join it without widening their method signatures.
package tx

import (
	"context"
	"database/sql"
	"slices"
	"sync"
)

type txKey struct{}
type undoKey struct{}

// WithTx stores a SQL transaction in the context.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// From returns the SQL transaction stored in the context, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// Executor is the query surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExecutorFrom returns the transaction in ctx, falling back to db.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// UndoLog is the unit of work for stores that cannot roll back natively.
// Such stores either write through and register a compensation with
// OnRollback, or stage their writes with Staged and publish them with
// OnCommit so nothing is visible outside the unit before it commits.
type UndoLog struct {
	mu      sync.Mutex
	undo    []func()
	publish []func()
	staged  map[any]any
}

// WithUndoLog attaches a fresh undo log to the context.
func WithUndoLog(ctx context.Context) (context.Context, *UndoLog) {
	log := &UndoLog{}
	return context.WithValue(ctx, undoKey{}, log), log
}

func undoLogFrom(ctx context.Context) (*UndoLog, bool) {
	log, ok := ctx.Value(undoKey{}).(*UndoLog)
	return log, ok && log != nil
}

// HasUndoLog reports whether ctx already carries an undo log.
func HasUndoLog(ctx context.Context) bool {
	_, ok := undoLogFrom(ctx)
	return ok
}

// OnRollback registers fn with the undo log in ctx. It is a no-op outside a unit of work.
func OnRollback(ctx context.Context, fn func()) {
	if log, ok := undoLogFrom(ctx); ok {
		log.mu.Lock()
		log.undo = append(log.undo, fn)
		log.mu.Unlock()
	}
}

// OnCommit registers fn to run when the unit of work in ctx commits. It
// reports false, and does not keep fn, outside a unit of work.
func OnCommit(ctx context.Context, fn func()) bool {
	log, ok := undoLogFrom(ctx)
	if !ok {
		return false
	}
	log.mu.Lock()
	log.publish = append(log.publish, fn)
	log.mu.Unlock()
	return true
}

// Staged returns the scratch value owner keeps in the unit of work in ctx,
// creating it with init on first use. It reports false outside a unit of work.
func Staged[T any](ctx context.Context, owner any, init func() T) (T, bool) {
	log, ok := undoLogFrom(ctx)
	if !ok {
		var zero T
		return zero, false
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	if v, ok := log.staged[owner]; ok {
		return v.(T), true
	}
	if log.staged == nil {
		log.staged = make(map[any]any)
	}
	v := init()
	log.staged[owner] = v
	return v, true
}

// Rollback runs the registered compensations in reverse order and drops
// everything staged.
func (l *UndoLog) Rollback() {
	undo, _ := l.reset()
	for _, fn := range slices.Backward(undo) {
		fn()
	}
}

// Commit publishes staged writes in registration order and drops the
// compensations.
func (l *UndoLog) Commit() {
	_, publish := l.reset()
	for _, fn := range publish {
		fn()
	}
}

func (l *UndoLog) reset() (undo, publish []func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	undo, publish = l.undo, l.publish
	l.undo, l.publish, l.staged = nil, nil, nil
	return undo, publish
}
