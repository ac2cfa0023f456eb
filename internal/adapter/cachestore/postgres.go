package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

const createTable = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

const selectEntry = `
SELECT value, expires_at FROM enrichment_cache
WHERE key = $1 AND expires_at > $2`

const upsertEntry = `
INSERT INTO enrichment_cache (key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

// Postgres stores entries in the enrichment_cache table.
type Postgres struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// NewPostgres opens a connection pool, verifies it and creates the cache
// table when missing.
func NewPostgres(ctx context.Context, databaseURL string, clock clockwork.Clock) (*Postgres, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("cachestore: parse database url: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("cachestore: create pool: %w", err)
	}
	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cachestore: ping database: %w", err)
	}
	if _, err := pool.Exec(initCtx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cachestore: create table: %w", err)
	}

	return &Postgres{pool: pool, clock: clock}, nil
}

// Get returns the entry for key if it has not expired.
func (c *Postgres) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	e := domain.CacheEntry{Key: key}
	err := c.pool.QueryRow(ctx, selectEntry, key, c.clock.Now()).Scan(&e.Value, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("cachestore: select %s: %w", key, err)
	}
	return e, true, nil
}

// Put upserts the entry, replacing any earlier value for the key.
func (c *Postgres) Put(ctx context.Context, e domain.CacheEntry) error {
	if _, err := c.pool.Exec(ctx, upsertEntry, e.Key, []byte(e.Value), e.ExpiresAt); err != nil {
		return fmt.Errorf("cachestore: upsert %s: %w", e.Key, err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Postgres) Close() error {
	c.pool.Close()
	return nil
}
