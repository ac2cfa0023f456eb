package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
)

// LocationPipeline extracts a location name from text and resolves it to
// coordinates.
type LocationPipeline struct {
	extractor *Extractor
	resolver  *Resolver
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLocationPipeline creates a LocationPipeline from its two stages.
func NewLocationPipeline(extractor *Extractor, resolver *Resolver, logger *slog.Logger, metrics *observability.Metrics) *LocationPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationPipeline{extractor: extractor, resolver: resolver, logger: logger, metrics: metrics}
}

// Resolve runs extraction then resolution. Stage failures are absorbed by
// each stage's fallback; an error is returned only for empty text or when ctx
// is done before a stage can run.
func (p *LocationPipeline) Resolve(ctx context.Context, text string) (domain.Result[domain.LocationResult], error) {
	start := time.Now()
	r, err := p.resolve(ctx, text)
	p.metrics.ObserveEnrichment("location", string(r.Outcome), start)
	return r, err
}

func (p *LocationPipeline) resolve(ctx context.Context, text string) (domain.Result[domain.LocationResult], error) {
	if strings.TrimSpace(text) == "" {
		return domain.Failed[domain.LocationResult](domain.ErrEmptyText.Error()), domain.ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return domain.Failed[domain.LocationResult](err.Error()), err
	}

	name := p.extractor.Extract(ctx, text)

	if err := ctx.Err(); err != nil {
		return domain.Failed[domain.LocationResult](err.Error()), err
	}

	coords := p.resolver.Resolve(ctx, name.Value)

	r := domain.Result[domain.LocationResult]{
		Value: domain.LocationResult{
			LocationName: name.Value,
			Coordinates:  coords.Value,
		},
		Outcome: domain.Worse(name.Outcome, coords.Outcome),
		Reason:  joinReasons(name.Reason, coords.Reason),
		Cached:  name.Cached && coords.Cached,
	}
	p.logger.Debug("location resolved",
		"location", r.Value.LocationName,
		"lat", r.Value.Coordinates.Lat,
		"lng", r.Value.Coordinates.Lng,
		"outcome", r.Outcome,
		"cached", r.Cached,
	)
	return r, nil
}

func joinReasons(reasons ...string) string {
	var parts []string
	for _, r := range reasons {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "; ")
}
