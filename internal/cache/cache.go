// Package cache provides the TTL caches used by the sync store.
//
// A [Cache] holds immutable [Entry] values keyed by a comparable key. Reads
// never return stale data: an entry older than the cache TTL is dropped and
// reported as a miss. Every key also carries a [Generation] that is bumped by
// [Cache.Invalidate] and [Cache.Clear]. Callers that fill the cache from the
// network snapshot the generation before the call and write back with
// [Cache.PutIfGeneration], so a response that raced with an invalidation can
// never repopulate the entry:
//
//	gen := c.Generation(key)
//	v, err := fetch(ctx)
//	if err == nil {
//	    c.PutIfGeneration(key, v, gen)
//	}
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultTTL is the time-to-live shared by the collection and entity caches
// unless overridden with WithTTL.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

type config struct {
	ttl   time.Duration
	clock Clock
}

// Option configures a Cache.
type Option func(*config)

// WithTTL overrides DefaultTTL for a cache. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Generation identifies the invalidation epoch of a key.
type Generation struct {
	epoch uint64
	key   uint64
}

// Cache is a keyed store of Entry values with a uniform TTL. It is safe for
// concurrent use.
type Cache[K comparable, V any] struct {
	name  string
	cfg   config
	attrs metric.MeasurementOption

	mu          sync.Mutex
	entries     map[K]Entry[V]
	generations map[K]uint64
	epoch       uint64
}

// New creates a named cache. The name is used in logs and metrics.
func New[K comparable, V any](name string, opts ...Option) *Cache[K, V] {
	cfg := config{ttl: DefaultTTL, clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Cache[K, V]{
		name:        name,
		cfg:         cfg,
		attrs:       metric.WithAttributes(attribute.String("cache", name)),
		entries:     make(map[K]Entry[V]),
		generations: make(map[K]uint64),
	}
}

// Name returns the cache name.
func (c *Cache[K, V]) Name() string {
	return c.name
}

// TTL returns the cache time-to-live.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.cfg.ttl
}

// Now returns the cache clock reading.
func (c *Cache[K, V]) Now() time.Time {
	return c.cfg.clock()
}

// Get returns the cached value for key if its entry is still valid.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	entry, ok := c.entries[key]
	if !ok {
		telemetry.GetMetrics().CacheMissesTotal.Add(context.Background(), 1, c.attrs)
		return zero, false
	}

	now := c.cfg.clock()
	if !entry.IsValid(now, c.cfg.ttl) {
		delete(c.entries, key)
		telemetry.GetMetrics().CacheMissesTotal.Add(context.Background(), 1, c.attrs)
		log.Debug().Str("cache", c.name).Any("key", key).Dur("age", entry.Age(now)).Msg("cache entry expired")
		return zero, false
	}

	telemetry.GetMetrics().CacheHitsTotal.Add(context.Background(), 1, c.attrs)
	return entry.Data, true
}

// Put stores a fresh entry for key, replacing any prior entry.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	c.entries[key] = NewEntry(val, c.cfg.clock())
	c.mu.Unlock()
}

// Generation returns the current generation of key.
func (c *Cache[K, V]) Generation(key K) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Generation{epoch: c.epoch, key: c.generations[key]}
}

// PutIfGeneration stores val only if key has not been invalidated since gen
// was observed. It returns false when the write was refused.
func (c *Cache[K, V]) PutIfGeneration(key K, val V, gen Generation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen.epoch != c.epoch || gen.key != c.generations[key] {
		log.Debug().Str("cache", c.name).Any("key", key).Msg("discarding stale cache fill")
		return false
	}

	c.entries[key] = NewEntry(val, c.cfg.clock())
	return true
}

// Invalidate removes the entry for key. Invalidating an absent key is a no-op
// apart from bumping its generation.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.generations[key]++
	c.mu.Unlock()

	telemetry.GetMetrics().CacheInvalidationsTotal.Add(context.Background(), 1, c.attrs)
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]Entry[V])
	c.generations = make(map[K]uint64)
	c.epoch++
	c.mu.Unlock()
}

// Len returns the number of stored entries, including stale ones not yet
// observed by Get.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Lookup is a typed Get for caches holding heterogeneous values.
func Lookup[T any, K comparable](c *Cache[K, any], key K) (T, bool) {
	var zero T

	val, ok := c.Get(key)
	if !ok {
		return zero, false
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}
