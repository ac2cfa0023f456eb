package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
	"github.com/couchcryptid/disaster-enrichment-service/internal/pipeline"
)

// --- mocks ---

type mockLoader struct {
	mu       sync.Mutex
	batches  [][]domain.EnrichmentEvent
	failures int
	calls    int
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.EnrichmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	batch := make([]domain.EnrichmentEvent, len(events))
	copy(batch, events)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockLoader) loaded() []domain.EnrichmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.EnrichmentEvent
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

func (m *mockLoader) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.batches))
	for i, b := range m.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func makeEvent(i int) domain.EnrichmentEvent {
	return domain.EnrichmentEvent{
		Type:    domain.EventLocationResolved,
		Key:     fmt.Sprintf("geocode_City%d", i),
		Outcome: domain.OutcomeOK,
		Payload: []byte(`{}`),
	}
}

func startPipeline(t *testing.T, p *pipeline.Pipeline) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, p.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ldr, slog.Default(), metrics, 10, 20*time.Millisecond, 16)

	startPipeline(t, p)
	for i := range 3 {
		require.NoError(t, p.Publish(context.Background(), makeEvent(i)))
	}

	assert.Eventually(t, func() bool { return len(ldr.loaded()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "geocode_City0", ldr.loaded()[0].Key)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.EventsPublished), 0)
	assert.True(t, p.Ready())
}

func TestPipeline_Run_RespectsBatchSize(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(ldr, slog.Default(), newTestMetrics(), 2, time.Second, 16)

	for i := range 5 {
		require.NoError(t, p.Publish(context.Background(), makeEvent(i)))
	}
	startPipeline(t, p)

	assert.Eventually(t, func() bool { return len(ldr.loaded()) >= 4 }, time.Second, 10*time.Millisecond)
	for _, n := range ldr.batchSizes() {
		assert.LessOrEqual(t, n, 2)
	}
}

func TestPipeline_Run_RetriesFailedBatch(t *testing.T) {
	ldr := &mockLoader{failures: 2}
	metrics := newTestMetrics()
	p := pipeline.New(ldr, slog.Default(), metrics, 10, 10*time.Millisecond, 16)

	startPipeline(t, p)
	require.NoError(t, p.Publish(context.Background(), makeEvent(1)))

	assert.Eventually(t, func() bool { return len(ldr.loaded()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestPipeline_Run_ContextCancellationDrains(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(ldr, slog.Default(), newTestMetrics(), 2, time.Second, 16)
	for i := range 5 {
		require.NoError(t, p.Publish(context.Background(), makeEvent(i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.loaded(), 5)
	assert.Equal(t, []int{2, 2, 1}, ldr.batchSizes())
	assert.False(t, p.Ready())
}

func TestPipeline_Run_DrainFailureCountsDropped(t *testing.T) {
	ldr := &mockLoader{failures: 1}
	metrics := newTestMetrics()
	p := pipeline.New(ldr, slog.Default(), metrics, 10, time.Second, 16)
	for i := range 3 {
		require.NoError(t, p.Publish(context.Background(), makeEvent(i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded())
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.EventsDropped), 0)
}

func TestPipeline_Publish_BufferFull(t *testing.T) {
	metrics := newTestMetrics()
	p := pipeline.New(&mockLoader{}, slog.Default(), metrics, 10, time.Second, 1)

	require.NoError(t, p.Publish(context.Background(), makeEvent(1)))
	err := p.Publish(context.Background(), makeEvent(2))
	require.ErrorIs(t, err, pipeline.ErrBufferFull)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsDropped), 0)
}

func TestPipeline_CheckReadiness(t *testing.T) {
	p := pipeline.New(&mockLoader{}, slog.Default(), newTestMetrics(), 10, time.Second, 1)
	require.Error(t, p.CheckReadiness(context.Background()))

	startPipeline(t, p)
	assert.Eventually(t, func() bool { return p.CheckReadiness(context.Background()) == nil }, time.Second, 10*time.Millisecond)
}
