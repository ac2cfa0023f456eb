package enrich

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
)

// FallbackCity is a well-known place used when the geocoder rejects a name.
type FallbackCity struct {
	Name        string
	Coordinates domain.Coordinates
}

// FallbackCities is matched by substring containment in order, so more
// specific names ("manhattan") precede broader ones ("new york").
var FallbackCities = []FallbackCity{
	{"manhattan", domain.Coordinates{Lat: 40.7589, Lng: -73.9851}},
	{"new york", domain.Coordinates{Lat: 40.7128, Lng: -74.0060}},
	{"nyc", domain.Coordinates{Lat: 40.7128, Lng: -74.0060}},
	{"los angeles", domain.Coordinates{Lat: 34.0522, Lng: -118.2437}},
	{"chicago", domain.Coordinates{Lat: 41.8781, Lng: -87.6298}},
	{"houston", domain.Coordinates{Lat: 29.7604, Lng: -95.3698}},
	{"phoenix", domain.Coordinates{Lat: 33.4484, Lng: -112.0740}},
	{"philadelphia", domain.Coordinates{Lat: 39.9526, Lng: -75.1652}},
	{"san antonio", domain.Coordinates{Lat: 29.4241, Lng: -98.4936}},
	{"san diego", domain.Coordinates{Lat: 32.7157, Lng: -117.1611}},
	{"dallas", domain.Coordinates{Lat: 32.7767, Lng: -96.7970}},
	{"san jose", domain.Coordinates{Lat: 37.3382, Lng: -121.8863}},
	{"austin", domain.Coordinates{Lat: 30.2672, Lng: -97.7431}},
	{"jacksonville", domain.Coordinates{Lat: 30.3322, Lng: -81.6557}},
	{"fort worth", domain.Coordinates{Lat: 32.7555, Lng: -97.3308}},
	{"columbus", domain.Coordinates{Lat: 39.9612, Lng: -82.9988}},
	{"charlotte", domain.Coordinates{Lat: 35.2271, Lng: -80.8431}},
	{"san francisco", domain.Coordinates{Lat: 37.7749, Lng: -122.4194}},
	{"indianapolis", domain.Coordinates{Lat: 39.7684, Lng: -86.1581}},
	{"seattle", domain.Coordinates{Lat: 47.6062, Lng: -122.3321}},
}

var nonLetters = regexp.MustCompile(`[^a-z\s]`)

// LookupFallback finds the first table entry contained in the normalized name.
func LookupFallback(name string, table []FallbackCity) (domain.Coordinates, bool) {
	key := strings.TrimSpace(nonLetters.ReplaceAllString(strings.ToLower(name), ""))
	for _, c := range table {
		if strings.Contains(key, c.Name) {
			return c.Coordinates, true
		}
	}
	return domain.Coordinates{}, false
}

// Resolver turns a location name into coordinates. It always yields a point.
type Resolver struct {
	geocoder domain.Geocoder
	cache    *Cache
	table    []FallbackCity
	ttl      time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver. Pass a nil geocoder to resolve from the
// fallback table only; pass a nil cache to disable caching.
func NewResolver(geocoder domain.Geocoder, cache *Cache, ttl, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		geocoder: geocoder,
		cache:    cache,
		table:    FallbackCities,
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve geocodes name, reusing a cached answer when one is fresh. Only
// answers from the geocoder are cached.
func (r *Resolver) Resolve(ctx context.Context, name string) domain.Result[domain.Coordinates] {
	return Through(ctx, r.cache, GeocodeKey(name), r.ttl, func(ctx context.Context) domain.Result[domain.Coordinates] {
		return r.geocode(ctx, name)
	})
}

func (r *Resolver) geocode(ctx context.Context, name string) domain.Result[domain.Coordinates] {
	if r.geocoder == nil {
		return r.fromTable(name, &domain.StatusError{Provider: "none", Status: "UNAVAILABLE"})
	}

	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	coords, err := r.geocoder.Geocode(callCtx, name)
	r.metrics.ObserveExternalCall(observability.DependencyGeocoder, start, err)
	if err == nil {
		return domain.OK(coords)
	}

	var statusErr *domain.StatusError
	if errors.As(err, &statusErr) {
		return r.fromTable(name, err)
	}

	r.logger.Warn("geocoding failed, using default coordinates",
		"location", name,
		"error", err,
	)
	return domain.Degraded(domain.DefaultCoordinates, err.Error())
}

func (r *Resolver) fromTable(name string, cause error) domain.Result[domain.Coordinates] {
	if coords, ok := LookupFallback(name, r.table); ok {
		r.logger.Warn("geocoding rejected, using fallback coordinates",
			"location", name,
			"lat", coords.Lat,
			"lng", coords.Lng,
			"error", cause,
		)
		return domain.Degraded(coords, cause.Error())
	}
	r.logger.Warn("geocoding rejected, no fallback entry, using default coordinates",
		"location", name,
		"error", cause,
	)
	return domain.Degraded(domain.DefaultCoordinates, cause.Error())
}
