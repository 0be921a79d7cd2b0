package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestRequiredAcks(t *testing.T) {
	tests := []struct {
		level      string
		want       kgo.Acks
		idempotent bool
	}{
		{level: "0", want: kgo.NoAck()},
		{level: "1", want: kgo.LeaderAck()},
		{level: "all", want: kgo.AllISRAcks(), idempotent: true},
		{level: "", want: kgo.AllISRAcks(), idempotent: true},
	}
	for _, tt := range tests {
		acks, idempotent := requiredAcks(tt.level)
		assert.Equal(t, tt.want, acks, tt.level)
		assert.Equal(t, tt.idempotent, idempotent, tt.level)
	}
}

func TestToRecordOrdersHeaders(t *testing.T) {
	rec := toRecord(&Message{
		Topic: "casereview.audit.facts",
		Key:   []byte("c-1"),
		Value: []byte(`{}`),
		Headers: map[string]string{
			"event_type":     "case_approved",
			"aggregate_id":   "c-1",
			"entry_id":       "e-1",
			"aggregate_type": "case",
		},
	})

	assert.Equal(t, "casereview.audit.facts", rec.Topic)
	assert.Equal(t, []byte("c-1"), rec.Key)
	require.Len(t, rec.Headers, 4)
	var keys []string
	for _, h := range rec.Headers {
		keys = append(keys, h.Key)
	}
	assert.Equal(t, []string{"aggregate_id", "aggregate_type", "entry_id", "event_type"}, keys)
	assert.Equal(t, []byte("case_approved"), rec.Headers[3].Value)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{}, nil)
	require.ErrorContains(t, err, "brokers not configured")
}

func TestProduceAfterClose(t *testing.T) {
	p, err := New(Config{Brokers: "127.0.0.1:1"}, nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Produce(t.Context(), &Message{Topic: "t"}), ErrClosed)
	assert.ErrorIs(t, p.Health(t.Context()), ErrClosed)
}
