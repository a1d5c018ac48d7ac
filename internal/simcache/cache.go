// Package simcache memoises simulation results keyed by the content hash of
// the input series and the exact parameter tuple. Concurrent identical
// requests are collapsed into one computation.
package simcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/danielcopelin/stormwater-harvesting/internal/model"
)

// Backend stores encoded results. Keys are opaque; series is the content hash
// the entry was computed from, so every entry of a series can be dropped at
// once.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, series, key string, val []byte) error
	InvalidateSeries(ctx context.Context, series string) (int, error)
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// ComputeFunc produces a fresh result on a cache miss.
type ComputeFunc func(ctx context.Context) (model.SimulationResponse, error)

// Cache fronts a Backend with request deduplication.
type Cache struct {
	backend Backend
	group   singleflight.Group
	logger  *slog.Logger
}

// New wraps backend.
func New(backend Backend, logger *slog.Logger) *Cache {
	return &Cache{backend: backend, logger: logger}
}

// Key builds the cache key for a series and parameter set.
func Key(seriesHash string, p model.Params) string {
	return seriesHash + "#" + p.Key()
}

// Do returns the cached result for (seriesHash, p), computing and storing it
// on a miss. The bool reports whether the result came from the cache. Backend
// failures degrade to a recompute; they are logged and never returned.
//
// The shared computation does not inherit the caller's cancellation:
// singleflight runs it on the first caller's context, and one caller giving
// up must not fail every other caller waiting on the same key.
func (c *Cache) Do(ctx context.Context, seriesHash string, p model.Params, compute ComputeFunc) (model.SimulationResponse, bool, error) {
	key := Key(seriesHash, p)
	flightCtx := context.WithoutCancel(ctx)

	type outcome struct {
		resp   model.SimulationResponse
		cached bool
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if raw, ok, err := c.backend.Get(flightCtx, key); err != nil {
			c.logger.Warn("simcache: get failed, recomputing", "backend", c.backend.Name(), "error", err)
		} else if ok {
			var resp model.SimulationResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				return outcome{resp: resp, cached: true}, nil
			}
			c.logger.Warn("simcache: discarding undecodable entry", "key", key)
		}

		resp, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("simcache: encode result: %w", err)
		}
		if err := c.backend.Set(flightCtx, seriesHash, key, raw); err != nil {
			c.logger.Warn("simcache: set failed", "backend", c.backend.Name(), "error", err)
		}
		return outcome{resp: resp}, nil
	})
	if err != nil {
		return model.SimulationResponse{}, false, err
	}
	o := v.(outcome)
	return o.resp, o.cached, nil
}

// InvalidateSeries drops every entry computed from the given series.
func (c *Cache) InvalidateSeries(ctx context.Context, seriesHash string) error {
	n, err := c.backend.InvalidateSeries(ctx, seriesHash)
	if err != nil {
		return fmt.Errorf("simcache: invalidate %s: %w", seriesHash, err)
	}
	if n > 0 {
		c.logger.Info("simcache: invalidated series", "series_hash", seriesHash, "entries", n)
	}
	return nil
}

// Ping checks the backend.
func (c *Cache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Name reports the backend in use ("memory" or "redis").
func (c *Cache) Name() string {
	return c.backend.Name()
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
