package simcache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is an in-process TTL map. A zero TTL keeps entries until they
// are invalidated.
type MemoryBackend struct {
	mu       sync.RWMutex
	entries  map[string]memEntry
	bySeries map[string]map[string]struct{}
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

type memEntry struct {
	val       []byte
	series    string
	expiresAt time.Time
}

// NewMemoryBackend creates the backend. Call Close to stop the background
// eviction goroutine.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	m := &MemoryBackend{
		entries:  make(map[string]memEntry),
		bySeries: make(map[string]map[string]struct{}),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go m.evictLoop(evictInterval(ttl))
	}
	return m
}

func evictInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return ttl
	}
	return time.Minute
}

func (m *MemoryBackend) expired(e memEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Get returns the stored value if present and unexpired.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e, time.Now()) {
		return nil, false, nil
	}
	return e.val, true, nil
}

// Set stores val under key with the configured TTL.
func (m *MemoryBackend) Set(_ context.Context, series, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{val: val, series: series}
	if m.ttl > 0 {
		e.expiresAt = time.Now().Add(m.ttl)
	}
	m.entries[key] = e
	keys, ok := m.bySeries[series]
	if !ok {
		keys = make(map[string]struct{})
		m.bySeries[series] = keys
	}
	keys[key] = struct{}{}
	return nil
}

// InvalidateSeries removes every entry recorded against series.
func (m *MemoryBackend) InvalidateSeries(_ context.Context, series string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.bySeries[series]
	for k := range keys {
		delete(m.entries, k)
	}
	delete(m.bySeries, series)
	return len(keys), nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Name() string { return "memory" }

// Close stops the eviction goroutine. Safe to call more than once.
func (m *MemoryBackend) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryBackend) evictLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryBackend) evictExpired() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.entries {
		if !m.expired(e, now) {
			continue
		}
		delete(m.entries, k)
		if keys, ok := m.bySeries[e.series]; ok {
			delete(keys, k)
			if len(keys) == 0 {
				delete(m.bySeries, e.series)
			}
		}
	}
}
