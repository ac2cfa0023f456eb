package cachestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-enrichment-service/internal/config"
	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
	connectMaxDelay = 4 * time.Second
)

// Open returns the cache store selected by CACHE_BACKEND. Remote backends are
// dialled up to three times with exponential backoff.
func Open(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (domain.CacheStore, error) {
	switch cfg.CacheBackend {
	case config.CacheMemory, "":
		return NewMemory(cfg.CacheSize, clock), nil
	case config.CacheRedis:
		return connect(ctx, logger, config.CacheRedis, func(ctx context.Context) (domain.CacheStore, error) {
			return NewValkey(ctx, ValkeyConfig{
				Address:  cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, clock)
		})
	case config.CachePostgres:
		return connect(ctx, logger, config.CachePostgres, func(ctx context.Context) (domain.CacheStore, error) {
			return NewPostgres(ctx, cfg.DatabaseURL, clock)
		})
	default:
		return nil, fmt.Errorf("cachestore: unsupported backend %q", cfg.CacheBackend)
	}
}

func connect(ctx context.Context, logger *slog.Logger, backend string, dial func(context.Context) (domain.CacheStore, error)) (domain.CacheStore, error) {
	backoff := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		var store domain.CacheStore
		store, err = dial(ctx)
		if err == nil {
			return store, nil
		}
		if attempt == connectAttempts {
			break
		}
		logger.Warn("cache store connect failed, retrying",
			"backend", backend, "attempt", attempt, "backoff", backoff, "error", err)
		if !sharedretry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = sharedretry.NextBackoff(backoff, connectMaxDelay)
	}
	return nil, fmt.Errorf("cachestore: connect %s after %d attempts: %w", backend, connectAttempts, err)
}
