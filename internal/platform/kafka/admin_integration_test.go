//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"casereview/internal/platform/kafka"
	"casereview/pkg/testutil/containers"
)

func TestAdmin_EnsureTopicIsIdempotent(t *testing.T) {
	kc := containers.KafkaBroker(t)
	admin, err := kafka.NewAdmin(kc.Brokers)
	require.NoError(t, err)
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, admin.Health(ctx))
	require.NoError(t, admin.EnsureTopic(ctx, "casereview.audit.facts", 3, 1))
	require.NoError(t, admin.EnsureTopic(ctx, "casereview.audit.facts", 3, 1))
}
