package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
)

const extractionPrompt = "Extract the location name from the following text. Return only the location name, nothing else: "

// Extractor turns free text into a location name.
type Extractor struct {
	generator  domain.TextGenerator
	strategies []Strategy
	cache      *Cache
	ttl        time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewExtractor creates an Extractor. Pass a nil generator to always use the
// pattern fallback. Model answers are cached for ttl; a nil cache disables
// caching.
func NewExtractor(generator domain.TextGenerator, cache *Cache, ttl, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		generator:  generator,
		strategies: FallbackStrategies,
		cache:      cache,
		ttl:        ttl,
		timeout:    timeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Extract asks the model for the location named in text. If the model call
// fails, the fallback strategies are applied and the result is degraded. The
// model's answer is trusted as-is when the call succeeds, and only that answer
// is cached.
func (e *Extractor) Extract(ctx context.Context, text string) domain.Result[string] {
	return Through(ctx, e.cache, ExtractKey(text), e.ttl, func(ctx context.Context) domain.Result[string] {
		return e.extract(ctx, text)
	})
}

func (e *Extractor) extract(ctx context.Context, text string) domain.Result[string] {
	name, err := e.generate(ctx, text)
	if err == nil {
		return domain.OK(name)
	}

	name = ExtractByPatterns(text, e.strategies)
	e.logger.Warn("location extraction fell back to patterns",
		"location", name,
		"error", err,
	)
	return domain.Degraded(name, err.Error())
}

func (e *Extractor) generate(ctx context.Context, text string) (string, error) {
	if e.generator == nil {
		return "", domain.ErrNoGenerator
	}

	callCtx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.generator.GenerateText(callCtx, extractionPrompt+text)
	e.metrics.ObserveExternalCall(observability.DependencyAIText, start, err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
