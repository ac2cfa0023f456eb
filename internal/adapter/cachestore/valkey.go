package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	valkey "github.com/valkey-io/valkey-go"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

// ValkeyConfig addresses a Valkey or Redis server.
type ValkeyConfig struct {
	Address  string
	Password string
	DB       int
}

// Valkey stores entries as JSON values whose server-side TTL matches the
// entry expiry.
type Valkey struct {
	client valkey.Client
	clock  clockwork.Clock
}

// NewValkey connects to the server and verifies it answers PING.
func NewValkey(ctx context.Context, cfg ValkeyConfig, clock clockwork.Clock) (*Valkey, error) {
	if cfg.Address == "" {
		return nil, errors.New("cachestore: valkey address required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("cachestore: valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cachestore: valkey ping: %w", err)
	}

	return &Valkey{client: client, clock: clock}, nil
}

// Get returns the entry for key. A missing key or an expired entry is a miss.
func (c *Valkey) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return domain.CacheEntry{}, false, nil
		}
		return domain.CacheEntry{}, false, fmt.Errorf("cachestore: valkey get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("cachestore: valkey get bytes: %w", err)
	}
	var e domain.CacheEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("cachestore: valkey unmarshal: %w", err)
	}
	if e.Expired(c.clock.Now()) {
		return domain.CacheEntry{}, false, nil
	}
	return e, true, nil
}

// Put writes the entry with a server-side TTL up to its expiry. Entries that
// are already expired are skipped.
func (c *Valkey) Put(ctx context.Context, e domain.CacheEntry) error {
	ttl := e.ExpiresAt.Sub(c.clock.Now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cachestore: valkey marshal: %w", err)
	}
	cmd := c.client.B().Set().Key(e.Key).Value(string(payload)).Px(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cachestore: valkey set: %w", err)
	}
	return nil
}

// Close releases the client connection.
func (c *Valkey) Close() error {
	c.client.Close()
	return nil
}
