// Package store persists review cases. Both implementations guard updates with
// the case version and take part in the unit of work carried by ctx.
package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"casereview/internal/cases/models"
	id "casereview/pkg/domain"
	"casereview/pkg/platform/sentinel"
	"casereview/pkg/platform/tx"
)

// InMemory stores cases in process memory. Inside a unit of work writes are
// staged and only published when it commits, so other callers never see a
// case that might still roll back. The unit of work itself reads its own
// staged writes.
type InMemory struct {
	mu    sync.RWMutex
	cases map[id.CaseID]*models.Case
}

// staging holds the writes of one unit of work.
type staging map[id.CaseID]*models.Case

func NewInMemory() *InMemory {
	return &InMemory{cases: make(map[id.CaseID]*models.Case)}
}

func (s *InMemory) staging(ctx context.Context) (staging, bool) {
	return tx.Staged(ctx, s, func() staging { return staging{} })
}

// lookup returns the case as the unit of work in ctx sees it.
func (s *InMemory) lookup(ctx context.Context, caseID id.CaseID) (*models.Case, bool) {
	if staged, ok := s.staging(ctx); ok {
		if c, ok := staged[caseID]; ok {
			return c, true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	return c, ok
}

// put stages c in the unit of work in ctx, or stores it right away outside one.
func (s *InMemory) put(ctx context.Context, c *models.Case) {
	stored := c.Clone()
	if staged, ok := s.staging(ctx); ok {
		staged[c.ID] = stored
		tx.OnCommit(ctx, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.cases[stored.ID] = stored
		})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[stored.ID] = stored
}

func (s *InMemory) Create(ctx context.Context, c *models.Case) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := s.lookup(ctx, c.ID); exists {
		return fmt.Errorf("case %s already exists: %w", c.ID, sentinel.ErrConflict)
	}
	s.put(ctx, c)
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := s.lookup(ctx, caseID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// Update replaces the case if its version, as seen by ctx, still equals
// expectedVersion. Callers serialise writers of one case with its lock.
func (s *InMemory) Update(ctx context.Context, c *models.Case, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prev, ok := s.lookup(ctx, c.ID)
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Version != expectedVersion {
		return fmt.Errorf("case %s is at version %d, not %d: %w", c.ID, prev.Version, expectedVersion, sentinel.ErrConflict)
	}
	s.put(ctx, c)
	return nil
}

// List returns a snapshot of every case ordered by submission time, then id.
func (s *InMemory) List(ctx context.Context) ([]*models.Case, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	view := maps.Clone(s.cases)
	s.mu.RUnlock()
	if staged, ok := s.staging(ctx); ok {
		maps.Copy(view, staged)
	}
	out := make([]*models.Case, 0, len(view))
	for _, c := range view {
		out = append(out, c.Clone())
	}
	slices.SortFunc(out, bySubmission)
	return out, nil
}

// ListOverdue returns non-terminal cases whose due date is before now.
func (s *InMemory) ListOverdue(ctx context.Context, now time.Time) ([]*models.Case, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(c *models.Case) bool { return !c.IsOverdue(now) }), nil
}

func bySubmission(a, b *models.Case) int {
	if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}
