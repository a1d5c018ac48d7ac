package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "harvest:ratelimit:"

// RedisLimiter is a fixed-window counter shared by every process using the
// same Redis. Each key allows limit requests per window.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window per key. It does not own
// client; Close leaves it open for the other users of the connection.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow increments the counter for key's current window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := r.now().UnixNano() / int64(r.window)
	k := fmt.Sprintf("%s%s:%d", redisKeyPrefix, key, slot)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.PExpire(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: redis: %w", err)
	}
	return incr.Val() <= r.limit, nil
}

// Close is a no-op; the client belongs to the caller.
func (r *RedisLimiter) Close() error { return nil }
