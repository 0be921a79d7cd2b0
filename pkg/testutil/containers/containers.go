//go:build integration

// Package containers starts the Postgres, Redis and Kafka fixtures that the
// integration suites share. Each fixture starts on first use and lives until
// the test binary exits, when Ryuk removes it.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"
)

const startTimeout = 2 * time.Minute

// shared starts a fixture once per test binary. A failed start is remembered
// so later suites fail fast instead of retrying.
type shared[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (s *shared[T]) get(t testing.TB, what string, start func(context.Context) (T, error)) T {
	t.Helper()
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		s.val, s.err = start(ctx)
	})
	if s.err != nil {
		t.Fatalf("start %s container: %v", what, s.err)
	}
	return s.val
}

var (
	sharedPostgres shared[*Postgres]
	sharedRedis    shared[*Redis]
	sharedKafka    shared[*Kafka]
)

// PostgresDB returns the migrated Postgres fixture.
func PostgresDB(t testing.TB) *Postgres {
	return sharedPostgres.get(t, "postgres", startPostgres)
}

// RedisServer returns the Redis fixture.
func RedisServer(t testing.TB) *Redis {
	return sharedRedis.get(t, "redis", startRedis)
}

// KafkaBroker returns the Kafka-protocol fixture.
func KafkaBroker(t testing.TB) *Kafka {
	return sharedKafka.get(t, "kafka", startKafka)
}
