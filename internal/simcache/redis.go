package simcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	entryPrefix  = "harvest:sim:"
	seriesPrefix = "harvest:series:"
)

// RedisBackend shares the cache across processes. Each series keeps a set of
// its entry keys so invalidation does not need a keyspace scan.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend connects to url (redis://host:port/db) and pings it.
func NewRedisBackend(ctx context.Context, url string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("simcache: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("simcache: ping redis: %w", err)
	}
	return &RedisBackend{client: client, ttl: ttl}, nil
}

// NewRedisBackendFromClient wraps an existing client. Close closes it.
func NewRedisBackendFromClient(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, entryPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, series, key string, val []byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entryPrefix+key, val, r.ttl)
		pipe.SAdd(ctx, seriesPrefix+series, key)
		if r.ttl > 0 {
			pipe.Expire(ctx, seriesPrefix+series, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisBackend) InvalidateSeries(ctx context.Context, series string) (int, error) {
	keys, err := r.client.SMembers(ctx, seriesPrefix+series).Result()
	if err != nil {
		return 0, err
	}
	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, entryPrefix+k)
	}
	del = append(del, seriesPrefix+series)
	if err := r.client.Del(ctx, del...).Err(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
