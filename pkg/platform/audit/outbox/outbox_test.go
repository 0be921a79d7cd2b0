package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := NewEntry("case", "c-42", "case_approved", []byte(`{"action":"case_approved"}`), now)

	assert.True(t, e.IsPending())
	assert.Equal(t, []byte("c-42"), e.Key())
	assert.Equal(t, map[string]string{
		"entry_id":       e.ID.String(),
		"aggregate_type": "case",
		"aggregate_id":   "c-42",
		"event_type":     "case_approved",
	}, e.Headers())

	e.ProcessedAt = &now
	assert.False(t, e.IsPending())
}
