package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
)

var confidencePattern = regexp.MustCompile(`(?i)confidence score[\s:*]*(\d+)`)

// ParseConfidenceScore reads the first integer following "confidence score" in
// a model analysis. It returns domain.DefaultConfidenceScore when none is found.
func ParseConfidenceScore(analysis string) int {
	m := confidencePattern.FindStringSubmatch(analysis)
	if m == nil {
		return domain.DefaultConfidenceScore
	}
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return domain.DefaultConfidenceScore
	}
	return score
}

// BuildVerificationPrompt asks the model for an authenticity analysis of an
// image in the given disaster context.
func BuildVerificationPrompt(disasterContext string) string {
	return fmt.Sprintf(`Analyze this image in the context of a disaster report: %q.

Please assess:
1. Does the image appear authentic or could it be manipulated or AI-generated?
2. Does the image content match the described disaster context?
3. Are there signs of digital manipulation such as inconsistent lighting, shadows, or artifacts?
4. How credible is the image as evidence of the reported situation?

Provide a short analysis and end with a line of the form "Confidence score: N" where N is an integer from 0 to 100 indicating how likely the image is authentic.`, disasterContext)
}

// VerifierConfig tunes a Verifier.
type VerifierConfig struct {
	// TTL is how long a successful verification stays cached.
	TTL time.Duration
	// Timeout bounds the download and analysis together.
	Timeout time.Duration
	// KeyFunc derives the cache key. Defaults to VerifyKey.
	KeyFunc VerifyKeyFunc
}

// Verifier assesses whether an image is an authentic depiction of a disaster.
type Verifier struct {
	fetcher domain.ImageFetcher
	vision  domain.VisionGenerator
	cache   *Cache
	cfg     VerifierConfig
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewVerifier creates a Verifier. A nil vision generator makes every
// verification degrade.
func NewVerifier(fetcher domain.ImageFetcher, vision domain.VisionGenerator, cache *Cache, cfg VerifierConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Verifier {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = VerifyKey
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		fetcher: fetcher,
		vision:  vision,
		cache:   cache,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CacheKey returns the key under which a verification of imageURL in
// disasterContext is cached.
func (v *Verifier) CacheKey(imageURL, disasterContext string) string {
	return v.cfg.KeyFunc(imageURL, disasterContext)
}

// Verify returns the authenticity assessment of the image at imageURL. Any
// download or model failure yields the fixed unavailable result, which is not
// cached.
func (v *Verifier) Verify(ctx context.Context, imageURL, disasterContext string) domain.Result[domain.VerificationResult] {
	start := time.Now()
	key := v.CacheKey(imageURL, disasterContext)
	r := Through(ctx, v.cache, key, v.cfg.TTL, func(ctx context.Context) domain.Result[domain.VerificationResult] {
		return v.analyze(ctx, imageURL, disasterContext)
	})
	v.metrics.ObserveEnrichment("verify", string(r.Outcome), start)
	return r
}

func (v *Verifier) analyze(ctx context.Context, imageURL, disasterContext string) domain.Result[domain.VerificationResult] {
	ctx, cancel := withTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	analysis, err := v.run(ctx, imageURL, disasterContext)
	if err != nil {
		v.logger.Warn("image verification unavailable",
			"image_url", imageURL,
			"error", err,
		)
		return domain.Degraded(domain.UnavailableVerification(v.clock.Now()), err.Error())
	}

	score := ParseConfidenceScore(analysis)
	return domain.OK(domain.NewVerificationResult(analysis, score, v.clock.Now()))
}

func (v *Verifier) run(ctx context.Context, imageURL, disasterContext string) (string, error) {
	if v.vision == nil {
		return "", domain.ErrNoGenerator
	}
	if v.fetcher == nil {
		return "", fmt.Errorf("fetch image: no image fetcher configured")
	}

	start := time.Now()
	img, err := v.fetcher.Fetch(ctx, imageURL)
	v.metrics.ObserveExternalCall(observability.DependencyImageFetch, start, err)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}

	start = time.Now()
	analysis, err := v.vision.GenerateFromImage(ctx, BuildVerificationPrompt(disasterContext), img.Data, img.MIMEType)
	v.metrics.ObserveExternalCall(observability.DependencyAIVision, start, err)
	if err != nil {
		return "", fmt.Errorf("analyze image: %w", err)
	}
	return analysis, nil
}
