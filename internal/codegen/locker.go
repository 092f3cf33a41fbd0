package codegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/xelth-com/loomtrace/internal/apperr"
)

// Locker guards a number series while an allocation is in flight.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// NopLocker never blocks. Collisions are left to Run's retry loop.
type NopLocker struct{}

func (NopLocker) Obtain(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisLocker holds a redislock per series.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker on rdb. ttl bounds how long a crashed holder blocks others.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 100),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperr.Conflict("number series %s is busy, retry the request", key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
