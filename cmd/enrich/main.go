package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/cachestore"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/gemini"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/googlemaps"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/imagefetch"
	kafkaadapter "github.com/couchcryptid/disaster-enrichment-service/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/mapbox"
	"github.com/couchcryptid/disaster-enrichment-service/internal/config"
	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/enrich"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
	"github.com/couchcryptid/disaster-enrichment-service/internal/pipeline"
)

type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Generative model (feature-flagged via AI_ENABLED / GEMINI_API_KEY).
	var (
		text   domain.TextGenerator
		vision domain.VisionGenerator
	)
	if cfg.AIEnabled {
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			logger.Error("gemini client unavailable, using fallbacks", "error", err)
		} else {
			text, vision = client, client
			metrics.AIEnabled.Set(1)
			logger.Info("gemini enabled", "model", cfg.GeminiModel)
		}
	} else {
		logger.Info("gemini disabled")
	}

	// Geocoder (feature-flagged via GEOCODER_ENABLED / provider credentials).
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		switch cfg.GeocoderProvider {
		case config.GeocoderMapbox:
			geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, logger)
		default:
			geocoder = googlemaps.NewClient(cfg.GoogleMapsAPIKey, cfg.GeocodeTimeout, logger)
		}
		metrics.GeocoderEnabled.Set(1)
		logger.Info("geocoding enabled", "provider", cfg.GeocoderProvider, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("geocoding disabled")
	}

	store, err := cachestore.Open(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("cache backend unavailable, using in-memory cache", "backend", cfg.CacheBackend, "error", err)
		store = cachestore.NewMemory(cfg.CacheSize, clock)
	}
	cache := enrich.NewCache(store, clock, logger, metrics)

	extractor := enrich.NewExtractor(text, cache, cfg.CacheTTL, cfg.AITextTimeout, logger, metrics)
	resolver := enrich.NewResolver(geocoder, cache, cfg.CacheTTL, cfg.GeocodeTimeout, logger, metrics)
	location := enrich.NewLocationPipeline(extractor, resolver, logger, metrics)

	keyFunc := enrich.VerifyKey
	if cfg.VerifyKeyIncludeContext {
		keyFunc = enrich.VerifyContextKey
	}
	fetcher := imagefetch.NewFetcher(&http.Client{}, cfg.ImageMaxBytes)
	verifier := enrich.NewVerifier(fetcher, vision, cache, enrich.VerifierConfig{
		TTL:     cfg.CacheTTL,
		Timeout: cfg.VerifyTimeout,
		KeyFunc: keyFunc,
	}, clock, logger, metrics)

	// Enrichment events (feature-flagged via KAFKA_ENABLED).
	var (
		events domain.EventPublisher
		ready  sharedobs.ReadinessChecker = alwaysReady{}
		writer *kafkaadapter.Writer
		done   = make(chan struct{})
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(writer, logger, metrics, cfg.EventBatchSize, cfg.EventFlushInterval, cfg.EventBufferSize)
		events, ready = p, p
		go func() {
			defer close(done)
			if err := p.Run(ctx); err != nil {
				logger.Error("event pipeline error", "error", err)
			}
		}()
	} else {
		close(done)
		logger.Info("event publishing disabled")
	}

	api := httpadapter.NewAPI(location, verifier, events, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, api, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("event pipeline did not drain before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("cache store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
