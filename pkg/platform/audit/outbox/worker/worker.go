package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"casereview/internal/platform/kafka/producer"
	"casereview/pkg/platform/audit/outbox"
	"casereview/pkg/platform/audit/outbox/metrics"
	"casereview/pkg/platform/circuit"
)

// DefaultTopic receives every relayed audit fact.
const DefaultTopic = "casereview.audit.facts"

const pruneInterval = time.Hour

// Publisher delivers a message synchronously.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and relays audit facts to Kafka.
// Delivery is at-least-once; consumers dedupe on the message key.
type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	metrics      *metrics.Metrics
	breaker      *circuit.Breaker
	logger       *slog.Logger
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		if topic != "" {
			w.topic = topic
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention prunes published entries older than d once an hour.
// Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		if d >= 0 {
			w.retention = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithBreaker replaces the default breaker, which opens after 5 consecutive
// publish failures and closes after 3 successes.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        DefaultTopic,
		batchSize:    100,
		pollInterval: 250 * time.Millisecond,
		breaker:      circuit.New("audit-relay"),
		logger:       slog.Default(),
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var prune <-chan time.Time
	if w.retention > 0 {
		pruneTicker := time.NewTicker(pruneInterval)
		defer pruneTicker.Stop()
		prune = pruneTicker.C
	}

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.Poll(w.ctx)
		case <-prune:
			if _, err := w.Prune(w.ctx); err != nil {
				w.logger.ErrorContext(w.ctx, "failed to prune outbox", "error", err)
			}
		}
	}
}

// Prune deletes entries published longer ago than the retention window.
func (w *Worker) Prune(ctx context.Context) (int64, error) {
	if w.retention <= 0 {
		return 0, nil
	}
	n, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "pruned published outbox entries", "count", n)
		w.metrics.AddPruned(n)
	}
	return n, nil
}

// Poll relays one batch and returns how many entries were published.
// Failed entries stay pending and are retried on the next poll. Once one entry
// of an aggregate fails, its later entries wait too so each case's facts reach
// Kafka in order. While the breaker is open a poll sends a single probe.
func (w *Worker) Poll(ctx context.Context) int {
	start := w.now()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		w.metrics.IncPublishFailures()
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	if w.breaker.IsOpen() {
		entries = entries[:1]
	}
	w.metrics.ObserveBatchSize(len(entries))

	published := 0
	held := make(map[string]struct{})
	for _, entry := range entries {
		if _, blocked := held[entry.AggregateID]; blocked {
			continue
		}
		err := w.publishEntry(ctx, entry)
		w.recordOutcome(ctx, err)
		if err != nil {
			held[entry.AggregateID] = struct{}{}
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.metrics.IncPublishFailures()
			continue
		}

		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			// published but not marked: it will be sent again
			w.logger.ErrorContext(ctx, "failed to mark entry as processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}

		published++
		w.metrics.IncPublished()
	}

	w.metrics.ObservePollDuration(w.now().Sub(start).Seconds())
	return published
}

func (w *Worker) recordOutcome(ctx context.Context, err error) {
	switch w.breaker.Record(err) {
	case circuit.Opened:
		w.logger.WarnContext(ctx, "audit relay circuit opened, probing one entry per poll", "breaker", w.breaker.Name())
		w.metrics.SetCircuitOpen(true)
	case circuit.Recovered:
		w.logger.InfoContext(ctx, "audit relay circuit closed", "breaker", w.breaker.Name())
		w.metrics.SetCircuitOpen(false)
	}
}

// Health fails while the relay breaker is open.
func (w *Worker) Health(context.Context) error {
	if w.breaker.IsOpen() {
		return fmt.Errorf("audit relay circuit %s is open", w.breaker.Name())
	}
	return nil
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := w.now()

	msg := &producer.Message{
		Topic:   w.topic,
		Key:     entry.Key(),
		Value:   entry.Payload,
		Headers: entry.Headers(),
	}

	if err := w.publisher.Produce(ctx, msg); err != nil {
		return err
	}

	w.metrics.ObservePublishDuration(w.now().Sub(start).Seconds())
	return nil
}

// drain relays what is left during shutdown.
func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		if w.Poll(ctx) == 0 {
			return
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics refreshes the pending depth gauge.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}

	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}

	w.metrics.SetPendingDepth(count)
	return nil
}
