//go:build integration

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	platformkafka "casereview/internal/platform/kafka"
)

// Kafka is a Redpanda broker; it speaks the Kafka protocol and boots in a
// few seconds.
type Kafka struct {
	Container testcontainers.Container
	Brokers   string
}

func startKafka(ctx context.Context) (*Kafka, error) {
	container, err := redpanda.Run(ctx,
		"docker.redpanda.com/redpandadata/redpanda:v24.2.4",
		redpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		return nil, err
	}
	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("seed broker: %w", err)
	}
	return &Kafka{Container: container, Brokers: broker}, nil
}

// CreateTopic provisions topic through the service's own admin client.
func (k *Kafka) CreateTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	admin, err := platformkafka.NewAdmin(k.Brokers)
	if err != nil {
		return err
	}
	defer admin.Close()
	return admin.EnsureTopic(ctx, topic, partitions, replicationFactor)
}

// NewConsumer joins groupID and reads topics from the oldest offset without
// committing, so a test sees everything produced before it subscribed.
func (k *Kafka) NewConsumer(_ context.Context, groupID string, topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
}

// poll hands every fetched record to visit until visit returns true, the
// client closes or timeout passes.
func poll(ctx context.Context, client *kgo.Client, timeout time.Duration, visit func(*kgo.Record) bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for ctx.Err() == nil {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			if visit(iter.Next()) {
				return
			}
		}
	}
}

// WaitForMessage returns the first record match accepts, or nil on timeout.
func (k *Kafka) WaitForMessage(ctx context.Context, client *kgo.Client, timeout time.Duration, match func(*kgo.Record) bool) *kgo.Record {
	var found *kgo.Record
	poll(ctx, client, timeout, func(r *kgo.Record) bool {
		if match(r) {
			found = r
		}
		return found != nil
	})
	return found
}

// CollectMessages gathers records in fetch order until want have arrived or
// timeout passes.
func (k *Kafka) CollectMessages(ctx context.Context, client *kgo.Client, timeout time.Duration, want int) []*kgo.Record {
	var records []*kgo.Record
	poll(ctx, client, timeout, func(r *kgo.Record) bool {
		records = append(records, r)
		return len(records) >= want
	})
	return records
}
