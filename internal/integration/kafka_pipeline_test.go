//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/cachestore"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/disaster-enrichment-service/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-enrichment-service/internal/config"
	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/enrich"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
	"github.com/couchcryptid/disaster-enrichment-service/internal/pipeline"
)

const testEventsTopic = "test-enrichment-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type receivedEvent struct {
	Event   domain.EnrichmentEvent
	Key     string
	Headers map[string]string
}

func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) receivedEvent {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from events topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var ev domain.EnrichmentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev), "unmarshal event")
	return receivedEvent{Event: ev, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-events-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaEnabled:       true,
		KafkaBrokers:       []string{broker},
		KafkaEventsTopic:   testEventsTopic,
		EventBatchSize:     10,
		EventFlushInterval: 100 * time.Millisecond,
		EventBufferSize:    64,
	}
}

// TestKafkaWriter verifies a batch of events round-trips through the broker
// with its key and headers intact.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	ev, err := domain.NewEnrichmentEvent(domain.EventLocationResolved, enrich.GeocodeKey("Manhattan"),
		domain.OutcomeOK, domain.LocationResult{
			LocationName: "Manhattan",
			Coordinates:  domain.Coordinates{Lat: 40.7589, Lng: -73.9851},
		})
	require.NoError(t, err)
	require.NoError(t, writer.LoadBatch(ctx, []domain.EnrichmentEvent{ev}))

	got := readEvent(ctx, t, newConsumer(t, broker))

	assert.Equal(t, "geocode_Manhattan", got.Key)
	assert.Equal(t, domain.EventLocationResolved, got.Headers["event_type"])
	assert.Equal(t, "ok", got.Headers["outcome"])
	_, err = time.Parse(time.RFC3339, got.Headers["processed_at"])
	assert.NoError(t, err, "invalid processed_at format")
	assert.JSONEq(t, `{"location_name":"Manhattan","coordinates":{"lat":40.7589,"lng":-73.9851}}`, string(got.Event.Payload))
}

// TestEnrichmentEventsEndToEnd drives the HTTP API with no model or geocoder
// configured and checks that every response is published as an event.
func TestEnrichmentEventsEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	cfg := testConfig(broker)
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewRealClock()

	cache := enrich.NewCache(cachestore.NewMemory(100, clock), clock, logger, metrics)
	location := enrich.NewLocationPipeline(
		enrich.NewExtractor(nil, cache, time.Hour, time.Second, logger, metrics),
		enrich.NewResolver(nil, cache, time.Hour, time.Second, logger, metrics),
		logger, metrics)
	verifier := enrich.NewVerifier(nil, nil, cache, enrich.VerifierConfig{TTL: time.Hour, Timeout: time.Second},
		clock, logger, metrics)

	writer := kafka.NewWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })
	p := pipeline.New(writer, logger, metrics, cfg.EventBatchSize, cfg.EventFlushInterval, cfg.EventBufferSize)

	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(runCtx) }()
	require.Eventually(t, p.Ready, 5*time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(httpadapter.NewServer(":0", p, httpadapter.NewAPI(location, verifier, p, logger), logger))
	t.Cleanup(srv.Close)

	post := func(path, body string) {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "degraded", resp.Header.Get("X-Enrichment-Outcome"))
	}
	post("/api/geocode", `{"text":"Flooding reported in Houston this morning"}`)
	post("/api/verify-image", `{"imageUrl":"https://img.example/flood.jpg","disasterContext":"flood"}`)

	consumer := newConsumer(t, broker)
	byType := map[string]receivedEvent{}
	for len(byType) < 2 {
		got := readEvent(ctx, t, consumer)
		byType[got.Event.Type] = got
	}

	stop()
	require.NoError(t, <-errCh)

	loc := byType[domain.EventLocationResolved]
	assert.Equal(t, "geocode_Houston", loc.Key)
	assert.Equal(t, domain.OutcomeDegraded, loc.Event.Outcome)
	var lr domain.LocationResult
	require.NoError(t, json.Unmarshal(loc.Event.Payload, &lr))
	assert.Equal(t, "Houston", lr.LocationName)
	assert.Equal(t, domain.Coordinates{Lat: 29.7604, Lng: -95.3698}, lr.Coordinates)

	img := byType[domain.EventImageVerified]
	assert.Equal(t, "verify_https://img.example/flood.jpg", img.Key)
	var vr domain.VerificationResult
	require.NoError(t, json.Unmarshal(img.Event.Payload, &vr))
	assert.Equal(t, domain.DefaultConfidenceScore, vr.ConfidenceScore)
	assert.False(t, vr.IsAuthentic)
	assert.True(t, vr.Fallback)
}
