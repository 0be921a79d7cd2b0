package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"casereview/internal/audit"
	"casereview/internal/platform/kafka/consumer"
)

// Verdict classifies a relayed fact after it has been checked.
type Verdict string

const (
	// VerdictVerified means the hash matches and the link to the previous
	// fact seen for the entity holds.
	VerdictVerified Verdict = "verified"
	// VerdictDuplicate is a redelivery of the last fact seen for the entity.
	VerdictDuplicate Verdict = "duplicate"
	// VerdictHashMismatch means the content no longer matches its hash.
	VerdictHashMismatch Verdict = "hash_mismatch"
	// VerdictBrokenLink means PrevHash differs from the last hash seen for the entity.
	VerdictBrokenLink Verdict = "broken_link"
	// VerdictMalformed is a record whose value is not an audit fact.
	VerdictMalformed Verdict = "malformed"
)

// Observation is one checked record.
type Observation struct {
	Verdict   Verdict
	Fact      audit.Fact
	Partition int32
	Offset    int64
}

// Sink receives every observation. Returning an error leaves the record
// uncommitted so it is delivered again.
type Sink func(ctx context.Context, obs Observation) error

// Handler checks audit facts relayed through Kafka. Facts of one entity share
// a partition key, so each entity's chain arrives in order and can be checked
// incrementally. The first fact seen for an entity is trusted as the anchor
// unless its PrevHash is empty, in which case it must be the chain head.
type Handler struct {
	sink   Sink
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]string
}

// NewHandler creates a verifying handler.
func NewHandler(sink Sink, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sink:   sink,
		logger: logger,
		last:   make(map[string]string),
	}
}

var _ consumer.Handler = (*Handler)(nil)

// Handle implements consumer.Handler.
// Malformed records are reported and committed; they would never decode on redelivery.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	obs := Observation{Partition: msg.Partition, Offset: msg.Offset}

	var fact audit.Fact
	if err := json.Unmarshal(msg.Value, &fact); err != nil || fact.EntityID == "" {
		h.logger.Warn("skipping malformed audit record",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		obs.Verdict = VerdictMalformed
		return h.emit(ctx, obs)
	}
	obs.Fact = fact
	obs.Verdict = h.check(fact)

	if obs.Verdict == VerdictHashMismatch || obs.Verdict == VerdictBrokenLink {
		h.logger.Error("audit chain break",
			"verdict", obs.Verdict,
			"entity_type", fact.EntityType,
			"entity_id", fact.EntityID,
			"fact_id", fact.ID,
		)
	}
	return h.emit(ctx, obs)
}

func (h *Handler) check(fact audit.Fact) Verdict {
	key := string(fact.EntityType) + "/" + fact.EntityID

	h.mu.Lock()
	defer h.mu.Unlock()

	prev, seen := h.last[key]
	if seen && fact.Hash == prev {
		return VerdictDuplicate
	}

	want, err := audit.ComputeHash(fact)
	if err != nil || want != fact.Hash {
		return VerdictHashMismatch
	}
	if seen && fact.PrevHash != prev {
		return VerdictBrokenLink
	}
	h.last[key] = fact.Hash
	return VerdictVerified
}

func (h *Handler) emit(ctx context.Context, obs Observation) error {
	if h.sink == nil {
		return nil
	}
	return h.sink(ctx, obs)
}

// Reset forgets every anchor, for example after a partition rebalance.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = make(map[string]string)
}
