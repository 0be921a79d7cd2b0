package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"casereview/internal/platform/config"
)

func TestProducerConfig(t *testing.T) {
	got := ProducerConfig(config.KafkaConfig{
		Brokers:         "a:9092,b:9092",
		ClientID:        "casereview-test",
		Acks:            "1",
		Retries:         5,
		DeliveryTimeout: 3 * time.Second,
	})

	assert.Equal(t, "a:9092,b:9092", got.Brokers)
	assert.Equal(t, "casereview-test", got.ClientID)
	assert.Equal(t, "1", got.Acks)
	assert.Equal(t, 5, got.Retries)
	assert.Equal(t, 3*time.Second, got.DeliveryTimeout)
}
