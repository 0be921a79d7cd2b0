package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casereview/internal/platform/kafka/producer"
	"casereview/pkg/platform/audit/outbox"
	"casereview/pkg/platform/audit/outbox/metrics"
	"casereview/pkg/platform/circuit"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []*outbox.Entry
}

func (f *fakeStore) Append(_ context.Context, e *outbox.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeStore) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range f.entries {
		if e.IsPending() && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			e.ProcessedAt = &at
			return nil
		}
	}
	return errors.New("missing")
}

func (f *fakeStore) CountPending(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var n int64
	for _, e := range f.entries {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	sent     []*producer.Message
	failOn   string
	down     bool
	attempts int
}

func (p *fakePublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.down || msg.Headers["aggregate_id"] == p.failOn {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func TestWorker_PollPublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	require.NoError(t, store.Append(ctx, outbox.NewEntry("case", "c-1", "case_submitted", []byte(`{}`), now)))
	require.NoError(t, store.Append(ctx, outbox.NewEntry("case", "c-2", "case_approved", []byte(`{}`), now)))

	pub := &fakePublisher{failOn: "c-2"}
	m := metrics.New(prometheus.NewRegistry())
	w := New(store, pub, WithMetrics(m), WithClock(func() time.Time { return now }))

	assert.Equal(t, 1, w.Poll(ctx))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, DefaultTopic, pub.sent[0].Topic)
	assert.Equal(t, []byte("c-1"), pub.sent[0].Key)
	assert.Equal(t, "case_submitted", pub.sent[0].Headers["event_type"])

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	require.NoError(t, w.UpdateMetrics(ctx))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PendingDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PublishFailures))
}

func TestWorker_StopDrainsPending(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	for range 3 {
		require.NoError(t, store.Append(ctx, outbox.NewEntry("case", uuid.NewString(), "case_submitted", nil, time.Now())))
	}
	pub := &fakePublisher{}
	w := New(store, pub, WithPollInterval(time.Hour), WithBatchSize(2))
	w.Start()

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Len(t, pub.sent, 3)
}

func TestWorker_FailedEntryHoldsLaterEntriesOfSameCase(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := &fakeStore{}
	require.NoError(t, store.Append(ctx, outbox.NewEntry("case", "c-1", "case_submitted", nil, now)))
	require.NoError(t, store.Append(ctx, outbox.NewEntry("case", "c-2", "case_submitted", nil, now)))
	require.NoError(t, store.Append(ctx, outbox.NewEntry("case", "c-1", "case_under_review", nil, now)))

	pub := &fakePublisher{failOn: "c-1"}
	w := New(store, pub)

	assert.Equal(t, 1, w.Poll(ctx))
	assert.Equal(t, 2, pub.attempts, "second c-1 entry must not be tried")
	require.Len(t, pub.sent, 1)
	assert.Equal(t, []byte("c-2"), pub.sent[0].Key)
}

func TestWorker_BreakerProbesWhileOpen(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	for range 4 {
		require.NoError(t, store.Append(ctx, outbox.NewEntry("case", uuid.NewString(), "case_submitted", nil, time.Now())))
	}
	pub := &fakePublisher{down: true}
	m := metrics.New(prometheus.NewRegistry())
	w := New(store, pub,
		WithMetrics(m),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))),
	)

	assert.Zero(t, w.Poll(ctx))
	assert.Equal(t, 4, pub.attempts)
	require.Error(t, w.Health(ctx))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitOpen))

	assert.Zero(t, w.Poll(ctx))
	assert.Equal(t, 5, pub.attempts, "open breaker sends one probe per poll")

	pub.down = false
	assert.Equal(t, 1, w.Poll(ctx))
	require.NoError(t, w.Health(ctx))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CircuitOpen))

	assert.Equal(t, 3, w.Poll(ctx))
}

func TestWorker_PruneHonoursRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	old, recent := now.Add(-8*24*time.Hour), now.Add(-time.Hour)

	store := &fakeStore{}
	for _, at := range []*time.Time{&old, &recent, nil} {
		e := outbox.NewEntry("case", uuid.NewString(), "case_submitted", nil, now)
		e.ProcessedAt = at
		require.NoError(t, store.Append(ctx, e))
	}

	m := metrics.New(prometheus.NewRegistry())
	w := New(store, &fakePublisher{}, WithMetrics(m), WithRetention(7*24*time.Hour), WithClock(func() time.Time { return now }))

	n, err := w.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, store.entries, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PrunedTotal))

	n, err = New(store, &fakePublisher{}).Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "no retention configured")
}
