package enrich_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

// --- test doubles ---

var errUnavailable = errors.New("connection refused")

type countingText struct {
	out   string
	err   error
	calls atomic.Int32
}

func (m *countingText) GenerateText(ctx context.Context, _ string) (string, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.out, m.err
}

type countingGeocoder struct {
	coords domain.Coordinates
	err    error
	calls  atomic.Int32
}

func (m *countingGeocoder) Geocode(_ context.Context, _ string) (domain.Coordinates, error) {
	m.calls.Add(1)
	return m.coords, m.err
}

type countingFetcher struct {
	img   domain.Image
	err   error
	calls atomic.Int32
}

func (m *countingFetcher) Fetch(_ context.Context, _ string) (domain.Image, error) {
	m.calls.Add(1)
	return m.img, m.err
}

type countingVision struct {
	out      string
	err      error
	calls    atomic.Int32
	lastMIME string
}

func (m *countingVision) GenerateFromImage(_ context.Context, _ string, _ []byte, mimeType string) (string, error) {
	m.calls.Add(1)
	m.lastMIME = mimeType
	return m.out, m.err
}

// mapStore returns entries as stored, expired or not, so expiry handling in
// the cache-aside layer is observable.
type mapStore struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	getErr  error
	putErr  error
	puts    int
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string]domain.CacheEntry)}
}

func (s *mapStore) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.CacheEntry{}, false, s.getErr
	}
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *mapStore) Put(_ context.Context, e domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.entries[e.Key] = e
	return nil
}

func (s *mapStore) Close() error { return nil }

func (s *mapStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// blockingStore never answers a lookup until the caller gives up.
type blockingStore struct{}

func (blockingStore) Get(ctx context.Context, _ string) (domain.CacheEntry, bool, error) {
	<-ctx.Done()
	return domain.CacheEntry{}, false, ctx.Err()
}

func (blockingStore) Put(context.Context, domain.CacheEntry) error { return nil }

func (blockingStore) Close() error { return nil }
