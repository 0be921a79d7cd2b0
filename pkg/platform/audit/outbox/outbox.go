// Package outbox holds audit facts that were committed alongside a case write
// until the relay has published them to Kafka.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kafka header names carried by every relayed entry.
const (
	HeaderEntryID       = "entry_id"
	HeaderAggregateType = "aggregate_type"
	HeaderAggregateID   = "aggregate_id"
	HeaderEventType     = "event_type"
)

// Entry is one relayable audit fact. The aggregate is the audited entity, so
// its id doubles as the partition key and keeps an entity's facts in order.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	// ProcessedAt is nil until the relay has published the entry.
	ProcessedAt *time.Time
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Key is the Kafka record key.
func (e *Entry) Key() []byte {
	return []byte(e.AggregateID)
}

// Headers describe the entry without decoding the payload.
func (e *Entry) Headers() map[string]string {
	return map[string]string{
		HeaderEntryID:       e.ID.String(),
		HeaderAggregateType: e.AggregateType,
		HeaderAggregateID:   e.AggregateID,
		HeaderEventType:     e.EventType,
	}
}

// Store persists entries. Append joins the transaction carried by ctx so an
// entry commits or rolls back with the fact it relays.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	// DeleteProcessedBefore prunes published entries and reports how many went.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
