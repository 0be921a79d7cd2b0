package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"casereview/pkg/platform/sentinel"
)

const (
	lockKeyPrefix      = "casereview:lock:"
	defaultLockTTL     = 30 * time.Second
	defaultRetryPeriod = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-key mutual exclusion lock shared by every instance using the
// same Redis. Locks expire after their TTL if the holder dies.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithLockTTL bounds how long a lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithRetryPeriod(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.retry = d
		}
	}
}

func WithLockLogger(logger *slog.Logger) LockerOption {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocker returns a Locker backed by client.
func NewLocker(client redis.UniversalClient, opts ...LockerOption) *Locker {
	l := &Locker{
		client: client,
		ttl:    defaultLockTTL,
		retry:  defaultRetryPeriod,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock polls SET NX until the lock is held or ctx ends. A ctx that ends while
// waiting yields sentinel.ErrLockTimeout.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		switch {
		case err == nil && ok:
			return func() { l.release(redisKey, token) }, nil
		case err != nil && ctx.Err() == nil:
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, sentinel.ErrUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, errors.Join(sentinel.ErrLockTimeout, ctx.Err()))
		case <-ticker.C:
		}
	}
}

func (l *Locker) release(redisKey, token string) {
	// The caller's ctx may already be done; release on a fresh bounded one.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		l.logger.Warn("failed to release case lock; it will expire",
			"key", redisKey,
			"ttl", l.ttl,
			"error", err,
		)
	}
}
