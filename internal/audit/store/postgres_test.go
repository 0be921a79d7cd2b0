package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casereview/internal/audit"
	id "casereview/pkg/domain"
	outboxpostgres "casereview/pkg/platform/audit/outbox/store/postgres"
)

var factRowColumns = []string{
	"id", "sequence", "occurred_at", "actor_id", "actor_name", "actor_role", "action",
	"entity_type", "entity_id", "entity_name", "description", "severity", "outcome",
	"before_state", "after_state", "detail", "prev_hash", "hash",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestPostgresStore_AppendQueuesOutboxEntry(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgres(db, WithOutbox(outboxpostgres.New(db)))

	fact := &audit.Fact{
		ID:          id.NewFactID(),
		Timestamp:   time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		ActorID:     "r-1",
		Action:      "case_approved",
		EntityType:  audit.EntityCase,
		EntityID:    "c-1",
		Severity:    audit.SeverityMedium,
		Outcome:     audit.OutcomeSuccess,
		BeforeState: &audit.StateSnapshot{Status: "UnderReview"},
		AfterState:  &audit.StateSnapshot{Status: "Approved", Classification: "Compliant"},
		Hash:        "h1",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_facts")).
		WithArgs(fact.ID.String(), fact.Timestamp, "r-1", "", "", "case_approved", "case", "c-1", "", "",
			"Medium", "Success", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", "h1").
		WillReturnRows(sqlmock.NewRows([]string{"sequence"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs(sqlmock.AnyArg(), "case", "c-1", "case_approved", sqlmock.AnyArg(), fact.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), fact))
	assert.Equal(t, int64(42), fact.Sequence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastHashWithoutFacts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT hash FROM audit_facts")).
		WithArgs("case", "c-9").
		WillReturnRows(sqlmock.NewRows([]string{"hash"}))

	hash, err := NewPostgres(db).LastHash(context.Background(), audit.EntityCase, "c-9")
	require.NoError(t, err)
	assert.Empty(t, hash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IterateScansRows(t *testing.T) {
	db, mock := newMock(t)
	factID := id.NewFactID()
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.FixedZone("GMT+1", 3600))

	rows := sqlmock.NewRows(factRowColumns).
		AddRow(factID.String(), int64(7), at, "r-1", "Ama Owusu", "reviewer", "case_rejected",
			"case", "c-1", "JV Filing", "rejected", "High", "Success",
			[]byte(`{"status":"UnderReview"}`), []byte(`{"status":"Rejected"}`), nil, "h0", "h1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_facts WHERE entity_type = $1 AND severity = $2 ORDER BY occurred_at DESC, sequence DESC")).
		WithArgs("case", "High").
		WillReturnRows(rows)

	var got []audit.Fact
	err := NewPostgres(db).Iterate(context.Background(), audit.Filter{EntityType: audit.EntityCase, Severity: audit.SeverityHigh},
		func(f audit.Fact) bool {
			got = append(got, f)
			return true
		})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, factID, got[0].ID)
	assert.Equal(t, time.UTC, got[0].Timestamp.Location())
	assert.Equal(t, "Rejected", got[0].AfterState.Status)
	assert.Nil(t, got[0].Detail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildWhere(t *testing.T) {
	t.Run("empty filter has no clause", func(t *testing.T) {
		where, args := buildWhere(audit.Filter{})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("text is escaped and shared across columns", func(t *testing.T) {
		where, args := buildWhere(audit.Filter{ActorID: "r-1", Text: "50%_off"})
		assert.Equal(t, " WHERE actor_id = $1 AND (actor_name ILIKE $2 OR action ILIKE $2 OR entity_name ILIKE $2 OR description ILIKE $2)", where)
		assert.Equal(t, []any{"r-1", `%50\%\_off%`}, args)
	})
}
