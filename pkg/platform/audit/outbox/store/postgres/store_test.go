package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casereview/pkg/platform/audit/outbox"
	"casereview/pkg/platform/sentinel"
)

func TestStore_AppendAndFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	entry := outbox.NewEntry("case", "c-1", "case_approved", []byte(`{"action":"case_approved"}`), now)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs(entry.ID, "case", "c-1", "case_approved", entry.Payload, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Append(ctx, entry))

	rows := sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at", "processed_at"}).
		AddRow(entry.ID, "case", "c-1", "case_approved", entry.Payload, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM outbox")).WithArgs(maxBatch).WillReturnRows(rows)

	entries, err := store.FetchUnprocessed(ctx, 5000)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsPending())
	assert.Equal(t, "case_approved", entries[0].EventType)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkProcessedMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox SET processed_at")).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = New(db).MarkProcessed(context.Background(), id, time.Now())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FetchNothingForZeroLimit(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entries, err := New(db).FetchUnprocessed(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestStore_DeleteProcessedBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := New(db).DeleteProcessedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
