// Package audit records immutable facts about every mutation and serves them
// back through filtered, newest-first queries.
package audit

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	auditmetrics "casereview/internal/audit/metrics"
	id "casereview/pkg/domain"
	dErrors "casereview/pkg/domain-errors"
)

// Store persists facts. Implementations must be append-only and safe for concurrent use.
type Store interface {
	// Append persists fact and assigns its Sequence. It joins the unit of work in ctx, if any.
	Append(ctx context.Context, fact *Fact) error
	// LastHash returns the hash of the entity's most recent fact, or "" when it has none.
	LastHash(ctx context.Context, entityType EntityType, entityID string) (string, error)
	// Iterate yields facts matching filter, newest first, until yield returns false.
	Iterate(ctx context.Context, filter Filter, yield func(Fact) bool) error
}

// Recorder is the only writer of audit facts.
type Recorder struct {
	store   Store
	now     func() time.Time
	logger  *slog.Logger
	metrics *auditmetrics.Metrics

	mu   sync.Mutex
	last time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates a Recorder over store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a fact built from in. The fact is visible to Query as soon as
// Record returns (or, inside a transaction, once it commits).
func (r *Recorder) Record(ctx context.Context, in Input) (Fact, error) {
	if strings.TrimSpace(in.Action) == "" || in.EntityType == "" || in.EntityID == "" {
		return Fact{}, dErrors.New(dErrors.CodeInvariantViolation, "audit input requires action, entity type and entity id")
	}
	if in.Severity == "" {
		in.Severity = SeverityLow
	}
	if in.Outcome == "" {
		in.Outcome = OutcomeSuccess
	}
	if !in.Severity.IsValid() || !in.Outcome.IsValid() {
		return Fact{}, dErrors.New(dErrors.CodeInvariantViolation, "audit input has unknown severity or outcome")
	}
	if err := ctx.Err(); err != nil {
		return Fact{}, r.writeFailure(ctx, err, in)
	}

	prev, err := r.store.LastHash(ctx, in.EntityType, in.EntityID)
	if err != nil {
		return Fact{}, r.writeFailure(ctx, err, in)
	}

	fact := Fact{
		ID:          id.NewFactID(),
		Timestamp:   r.stamp(),
		ActorID:     in.ActorID,
		ActorName:   in.ActorName,
		ActorRole:   in.ActorRole,
		Action:      in.Action,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		EntityName:  in.EntityName,
		Description: in.Description,
		Severity:    in.Severity,
		Outcome:     in.Outcome,
		BeforeState: cloneSnapshot(in.BeforeState),
		AfterState:  cloneSnapshot(in.AfterState),
		Detail:      maps.Clone(in.Detail),
		PrevHash:    prev,
	}
	if fact.Hash, err = ComputeHash(fact); err != nil {
		return Fact{}, r.writeFailure(ctx, err, in)
	}

	if err := r.store.Append(ctx, &fact); err != nil {
		return Fact{}, r.writeFailure(ctx, err, in)
	}
	if r.metrics != nil {
		r.metrics.IncRecorded(string(fact.EntityType), string(fact.Outcome))
	}
	return fact, nil
}

// Query returns a lazy sequence of facts matching filter, newest first (ties
// broken by sequence). Each range over the sequence re-reads the store.
func (r *Recorder) Query(ctx context.Context, filter Filter) iter.Seq2[Fact, error] {
	return func(yield func(Fact, error) bool) {
		stopped := false
		err := r.store.Iterate(ctx, filter, func(f Fact) bool {
			if !yield(f, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(Fact{}, readFailure(err))
		}
	}
}

// Collect drains up to limit facts from Query; limit <= 0 means no cap.
func (r *Recorder) Collect(ctx context.Context, filter Filter, limit int) ([]Fact, error) {
	var out []Fact
	for fact, err := range r.Query(ctx, filter) {
		if err != nil {
			return nil, err
		}
		out = append(out, fact)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ChainBreak locates a fact whose hash or link does not verify.
type ChainBreak struct {
	EntityType EntityType
	EntityID   string
	FactID     id.FactID
	Sequence   int64
}

// Verify re-walks the hash chain of every entity matched by filter and returns
// the breaks it finds.
func (r *Recorder) Verify(ctx context.Context, filter Filter) ([]ChainBreak, error) {
	type entityKey struct {
		typ EntityType
		id  string
	}
	groups := make(map[entityKey][]Fact)
	var order []entityKey
	for fact, err := range r.Query(ctx, Filter{EntityType: filter.EntityType, EntityID: filter.EntityID}) {
		if err != nil {
			return nil, err
		}
		k := entityKey{fact.EntityType, fact.EntityID}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], fact)
	}

	var breaks []ChainBreak
	for _, k := range order {
		facts := groups[k]
		slices.SortFunc(facts, func(a, b Fact) int { return cmp.Compare(a.Sequence, b.Sequence) })
		idx, err := VerifyChain(facts)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verify audit chain")
		}
		if idx >= 0 {
			broken := facts[idx]
			breaks = append(breaks, ChainBreak{EntityType: k.typ, EntityID: k.id, FactID: broken.ID, Sequence: broken.Sequence})
			r.logger.ErrorContext(ctx, "audit chain broken",
				"entity_type", k.typ,
				"entity_id", k.id,
				"fact_id", broken.ID.String(),
				"sequence", broken.Sequence,
			)
			if r.metrics != nil {
				r.metrics.IncChainBreaks()
			}
		}
	}
	return breaks, nil
}

// stamp returns a strictly increasing UTC timestamp at microsecond precision,
// which is what the Postgres store round-trips.
func (r *Recorder) stamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.now().UTC().Truncate(time.Microsecond)
	if !ts.After(r.last) {
		ts = r.last.Add(time.Microsecond)
	}
	r.last = ts
	return ts
}

func (r *Recorder) writeFailure(ctx context.Context, err error, in Input) error {
	if r.metrics != nil {
		r.metrics.IncWriteFailures()
	}
	r.logger.ErrorContext(ctx, "audit write failed",
		"action", in.Action,
		"entity_type", in.EntityType,
		"entity_id", in.EntityID,
		"error", err,
	)
	if isTimeout(err) {
		return dErrors.Wrap(err, dErrors.CodeStorageTimeout, "audit write timed out")
	}
	return &dErrors.Error{
		Code:    dErrors.CodeAuditWriteFailure,
		Message: fmt.Sprintf("audit write failed: %v", err),
		Err:     err,
	}
}

func readFailure(err error) error {
	if isTimeout(err) {
		return dErrors.Wrap(err, dErrors.CodeStorageTimeout, "audit query timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed")
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		dErrors.HasCode(err, dErrors.CodeStorageTimeout)
}

func cloneSnapshot(s *StateSnapshot) *StateSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
