//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casereview/internal/platform/config"
	platformredis "casereview/internal/platform/redis"
	"casereview/pkg/platform/sentinel"
	"casereview/pkg/testutil/containers"
)

func newClient(t *testing.T) *platformredis.Client {
	t.Helper()
	rc := containers.RedisServer(t)
	client, err := platformredis.New(context.Background(), config.RedisConfig{URL: rc.URL}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.FlushAll(context.Background()).Err())
	return client
}

func TestLocker_SerialisesHolders(t *testing.T) {
	client := newClient(t)
	locker := platformredis.NewLocker(client, platformredis.WithRetryPeriod(5*time.Millisecond))
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "case-1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestLocker_WaitHonoursContext(t *testing.T) {
	client := newClient(t)
	locker := platformredis.NewLocker(client)

	unlock, err := locker.Lock(context.Background(), "case-2")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "case-2")
	require.ErrorIs(t, err, sentinel.ErrLockTimeout)
}

func TestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client := newClient(t)
	locker := platformredis.NewLocker(client, platformredis.WithLockTTL(50*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "case-3")
	require.NoError(t, err)

	// The first lock expires and a second holder takes over.
	time.Sleep(100 * time.Millisecond)
	unlock2, err := locker.Lock(ctx, "case-3")
	require.NoError(t, err)
	defer unlock2()

	unlock()
	exists, err := client.Exists(ctx, "casereview:lock:case-3").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestLocker_DistinctKeysDoNotBlock(t *testing.T) {
	client := newClient(t)
	locker := platformredis.NewLocker(client)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockA, err := locker.Lock(ctx, "case-a")
	require.NoError(t, err)
	defer unlockA()
	unlockB, err := locker.Lock(ctx, "case-b")
	require.NoError(t, err)
	unlockB()
}
