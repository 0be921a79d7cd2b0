package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "casereview/pkg/domain-errors"
	"casereview/pkg/platform/tx"
)

func TestPostgresStoreTx(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()

		err = NewPostgresStoreTx(db, time.Second).RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := tx.From(ctx)
			assert.True(t, ok, "fn must see the transaction")
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		})

		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns the fn error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectRollback()
		boom := dErrors.New(dErrors.CodeAuditWriteFailure, "append failed")

		err = NewPostgresStoreTx(db, time.Second).RunInTx(context.Background(), func(context.Context) error {
			return boom
		})

		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("joins an enclosing transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()
		runner := NewPostgresStoreTx(db, time.Second)

		calls := 0
		err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
			return runner.RunInTx(ctx, func(context.Context) error {
				calls++
				return nil
			})
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = NewPostgresStoreTx(db, time.Second).RunInTx(ctx, func(context.Context) error {
			t.Fatal("fn must not run")
			return nil
		})

		assert.True(t, dErrors.HasCode(err, dErrors.CodeStorageTimeout))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is reported", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		err = NewPostgresStoreTx(db, time.Second).RunInTx(context.Background(), func(context.Context) error { return nil })

		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit transaction")
	})
}

func TestInMemoryStoreTx_RollsBackUndoLog(t *testing.T) {
	undone := false
	err := NewInMemoryStoreTx(time.Second).RunInTx(context.Background(), func(ctx context.Context) error {
		tx.OnRollback(ctx, func() { undone = true })
		return errors.New("audit append failed")
	})

	require.Error(t, err)
	assert.True(t, undone)
}
