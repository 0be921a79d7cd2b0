package service

import (
	"context"
	"iter"
	"time"

	"casereview/internal/audit"
	"casereview/internal/cases/models"
	id "casereview/pkg/domain"
)

// Store persists cases. Writes join the unit of work carried by ctx.
type Store interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error)
	// Update fails with sentinel.ErrConflict when the stored version is not expectedVersion.
	Update(ctx context.Context, c *models.Case, expectedVersion int64) error
	List(ctx context.Context) ([]*models.Case, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Case, error)
}

// AuditRecorder writes and reads audit facts.
type AuditRecorder interface {
	Record(ctx context.Context, in audit.Input) (audit.Fact, error)
	Query(ctx context.Context, filter audit.Filter) iter.Seq2[audit.Fact, error]
	Verify(ctx context.Context, filter audit.Filter) ([]audit.ChainBreak, error)
}

// Locker serialises work on one case. Lock blocks until the lock is held or ctx ends.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// StoreTx provides the transactional boundary a decision runs in.
// Implementations may wrap a database transaction or an in-memory undo log.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
