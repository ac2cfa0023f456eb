package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Supported cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Supported geocoding providers.
const (
	GeocoderGoogle = "google"
	GeocoderMapbox = "mapbox"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Generative model configuration.
	GeminiAPIKey  string
	GeminiModel   string
	AIEnabled     bool
	AITextTimeout time.Duration

	// Image verification configuration.
	VerifyTimeout           time.Duration
	ImageMaxBytes           int64
	VerifyKeyIncludeContext bool

	// Geocoding configuration.
	GeocoderProvider string
	GoogleMapsAPIKey string
	MapboxToken      string
	GeocoderEnabled  bool
	GeocodeTimeout   time.Duration

	// Cache store configuration.
	CacheBackend  string
	CacheTTL      time.Duration
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	// Enrichment event publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaEventsTopic   string
	EventBatchSize     int
	EventFlushInterval time.Duration
	EventBufferSize    int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	aiTextTimeout, err := parseDuration("AI_TEXT_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	verifyTimeout, err := parseDuration("VERIFY_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	imageMaxBytes, err := parsePositiveInt("IMAGE_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}
	bufferSize, err := parsePositiveInt("EVENT_BUFFER_SIZE", 1024)
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	aiEnabled := parseFlag("AI_ENABLED", geminiKey != "")

	provider := strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", GeocoderGoogle))
	googleKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	geocoderEnabled := parseFlag("GEOCODER_ENABLED", providerToken(provider, googleKey, mapboxToken) != "")

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GeminiAPIKey:  geminiKey,
		GeminiModel:   sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		AIEnabled:     aiEnabled,
		AITextTimeout: aiTextTimeout,

		VerifyTimeout:           verifyTimeout,
		ImageMaxBytes:           int64(imageMaxBytes),
		VerifyKeyIncludeContext: parseFlag("VERIFY_KEY_INCLUDE_CONTEXT", false),

		GeocoderProvider: provider,
		GoogleMapsAPIKey: googleKey,
		MapboxToken:      mapboxToken,
		GeocoderEnabled:  geocoderEnabled,
		GeocodeTimeout:   geocodeTimeout,

		CacheBackend:  strings.ToLower(sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheMemory)),
		CacheTTL:      cacheTTL,
		CacheSize:     cacheSize,
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		KafkaEnabled:       parseFlag("KAFKA_ENABLED", false),
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic:   sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "enrichment-events"),
		EventBatchSize:     batchSize,
		EventFlushInterval: flushInterval,
		EventBufferSize:    bufferSize,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AIEnabled && c.GeminiAPIKey == "" {
		return errors.New("AI_ENABLED is true but GEMINI_API_KEY is not set")
	}
	switch c.GeocoderProvider {
	case GeocoderGoogle, GeocoderMapbox:
	default:
		return fmt.Errorf("unsupported GEOCODER_PROVIDER %q", c.GeocoderProvider)
	}
	if c.GeocoderEnabled && providerToken(c.GeocoderProvider, c.GoogleMapsAPIKey, c.MapboxToken) == "" {
		if c.GeocoderProvider == GeocoderMapbox {
			return errors.New("GEOCODER_ENABLED is true but MAPBOX_TOKEN is not set")
		}
		return errors.New("GEOCODER_ENABLED is true but GOOGLE_MAPS_API_KEY is not set")
	}
	switch c.CacheBackend {
	case CacheMemory, CacheRedis:
	case CachePostgres:
		if c.DatabaseURL == "" {
			return errors.New("CACHE_BACKEND is postgres but DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaEventsTopic == "" {
			return errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

func providerToken(provider, googleKey, mapboxToken string) string {
	if provider == GeocoderMapbox {
		return mapboxToken
	}
	return googleKey
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFlag(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return def
}
