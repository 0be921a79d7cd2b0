package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"casereview/internal/audit"
	"casereview/pkg/platform/tx"
)

// InMemory keeps facts in process memory. Appends made inside a unit of work
// are withdrawn if that unit of work rolls back.
type InMemory struct {
	mu    sync.RWMutex
	facts []audit.Fact
	seq   int64
}

// NewInMemory creates an empty in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, fact *audit.Fact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.seq++
	fact.Sequence = s.seq
	s.facts = append(s.facts, cloneFact(*fact))
	s.mu.Unlock()

	factID := fact.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.facts = slices.DeleteFunc(s.facts, func(f audit.Fact) bool { return f.ID == factID })
	})
	return nil
}

func (s *InMemory) LastHash(ctx context.Context, entityType audit.EntityType, entityID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.facts) - 1; i >= 0; i-- {
		f := s.facts[i]
		if f.EntityType == entityType && f.EntityID == entityID {
			return f.Hash, nil
		}
	}
	return "", nil
}

// Iterate works over a snapshot taken when it is called, so facts recorded while
// a caller is still ranging appear on the next iteration, not this one.
func (s *InMemory) Iterate(ctx context.Context, filter audit.Filter, yield func(audit.Fact) bool) error {
	s.mu.RLock()
	snapshot := make([]audit.Fact, 0, len(s.facts))
	for _, f := range s.facts {
		if filter.Matches(f) {
			snapshot = append(snapshot, f)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(snapshot, func(a, b audit.Fact) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.Sequence, a.Sequence)
	})
	for _, f := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !yield(cloneFact(f)) {
			return nil
		}
	}
	return nil
}

// Len returns the number of stored facts.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

func cloneFact(f audit.Fact) audit.Fact {
	if f.BeforeState != nil {
		b := *f.BeforeState
		f.BeforeState = &b
	}
	if f.AfterState != nil {
		a := *f.AfterState
		f.AfterState = &a
	}
	f.Detail = maps.Clone(f.Detail)
	return f
}
