package enrich

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
)

const (
	// cacheReadTimeout bounds a lookup; a slow store counts as a miss.
	cacheReadTimeout = time.Second
	// cacheWriteTimeout bounds a best-effort cache write once the computation finished.
	cacheWriteTimeout = 2 * time.Second
)

// Cache applies the cache-aside policy over a domain.CacheStore. A nil *Cache,
// or one without a store, disables caching.
type Cache struct {
	store   domain.CacheStore
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCache creates a cache-aside helper around store.
func NewCache(store domain.CacheStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, clock: clock, logger: logger, metrics: metrics}
}

// Through returns the cached value for key when a fresh entry exists. Otherwise
// it runs compute and, only when compute took the primary path, writes the value
// back with the given TTL. Cache failures are logged and never surface.
func Through[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) domain.Result[T]) domain.Result[T] {
	if v, ok := lookup[T](ctx, c, key); ok {
		r := domain.OK(v)
		r.Cached = true
		return r
	}

	r := compute(ctx)
	if r.Outcome == domain.OutcomeOK {
		store(ctx, c, key, ttl, r.Value)
	}
	return r
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	if c == nil || c.store == nil {
		return zero, false
	}

	readCtx, cancel := context.WithTimeout(ctx, cacheReadTimeout)
	defer cancel()

	entry, ok, err := c.store.Get(readCtx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
		c.metrics.ObserveCache("get", "error")
		return zero, false
	}
	if !ok {
		c.metrics.ObserveCache("get", "miss")
		return zero, false
	}
	if entry.Expired(c.clock.Now()) {
		c.metrics.ObserveCache("get", "expired")
		return zero, false
	}

	var v T
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		c.logger.Warn("cache entry undecodable, recomputing", "key", key, "error", err)
		c.metrics.ObserveCache("get", "error")
		return zero, false
	}
	c.metrics.ObserveCache("get", "hit")
	return v, true
}

func store[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, v T) {
	if c == nil || c.store == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache value not serializable", "key", key, "error", err)
		c.metrics.ObserveCache("put", "error")
		return
	}

	// The request may already be finishing; the write should still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()

	entry := domain.CacheEntry{Key: key, Value: data, ExpiresAt: c.clock.Now().Add(ttl)}
	if err := c.store.Put(writeCtx, entry); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
		c.metrics.ObserveCache("put", "error")
		return
	}
	c.metrics.ObserveCache("put", "stored")
}
