package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyText is returned when location processing is asked to work on no text.
	ErrEmptyText = errors.New("text is required")
	// ErrEmptyResponse is returned by a generator whose model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrNoGenerator is reported when no model client is configured.
	ErrNoGenerator = errors.New("no model client configured")
)

// TextGenerator runs a text completion.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// VisionGenerator runs a completion over a prompt and a single image.
type VisionGenerator interface {
	GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Geocoder converts an address string to coordinates. A provider answering
// with anything but a usable match returns a *StatusError; transport and decode
// failures are returned as plain errors.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// StatusError is a non-success status reported by a geocoding provider,
// e.g. ZERO_RESULTS, REQUEST_DENIED or OVER_QUERY_LIMIT.
type StatusError struct {
	Provider string
	Status   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s geocoding status %s", e.Provider, e.Status)
}

// Image is a downloaded image held in memory.
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageFetcher downloads an image by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (Image, error)
}

// CacheEntry is a cached enrichment value.
type CacheEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the entry must be treated as a miss at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStore is a keyed store with per-entry expiry. Get never returns an
// expired entry. Put replaces any existing entry with the same key.
type CacheStore interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Put(ctx context.Context, entry CacheEntry) error
	Close() error
}
