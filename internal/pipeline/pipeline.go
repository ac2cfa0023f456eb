// Package pipeline delivers enrichment events to the event topic in batches,
// off the request path.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
	"github.com/couchcryptid/disaster-enrichment-service/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	drainTimeout   = 5 * time.Second
)

// ErrBufferFull is returned by Publish when the dispatch buffer has no room.
var ErrBufferFull = errors.New("event buffer full")

// BatchLoader writes multiple events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.EnrichmentEvent) error
}

// Pipeline buffers published events and writes them in batches.
// It implements domain.EventPublisher.
type Pipeline struct {
	loader        BatchLoader
	logger        *slog.Logger
	metrics       *observability.Metrics
	events        chan domain.EnrichmentEvent
	ready         atomic.Bool
	batchSize     int
	flushInterval time.Duration
}

// New creates a Pipeline. Batches hold at most batchSize events and are
// flushed at least every flushInterval while events are pending.
func New(l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, flushInterval time.Duration, bufferSize int) *Pipeline {
	return &Pipeline{
		loader:        l,
		logger:        logger,
		metrics:       metrics,
		events:        make(chan domain.EnrichmentEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Publish enqueues an event without blocking. A full buffer drops the event.
func (p *Pipeline) Publish(_ context.Context, event domain.EnrichmentEvent) error {
	select {
	case p.events <- event:
		return nil
	default:
		p.metrics.EventsDropped.Inc()
		return ErrBufferFull
	}
}

// Ready reports whether the dispatch loop is running.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil while the dispatch loop is running.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("event pipeline is not running")
	}
	return nil
}

// Run dispatches batches until the context is cancelled, then flushes what is
// still buffered.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("event pipeline started", "batch_size", p.batchSize, "flush_interval", p.flushInterval)
	p.metrics.PipelineRunning.Set(1)
	p.ready.Store(true)
	defer func() {
		p.ready.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	backoff := initialBackoff
	for {
		batch, running := p.collect(ctx)
		if running && p.loadWithRetry(ctx, batch, &backoff) {
			continue
		}
		p.logger.Info("event pipeline stopping", "reason", ctx.Err())
		p.drain(batch)
		return nil
	}
}

// collect waits for the first event and then gathers more until the batch is
// full or the flush interval elapses. It returns false once ctx is done, along
// with whatever was gathered.
func (p *Pipeline) collect(ctx context.Context) ([]domain.EnrichmentEvent, bool) {
	var batch []domain.EnrichmentEvent
	select {
	case <-ctx.Done():
		return nil, false
	case ev := <-p.events:
		batch = append(batch, ev)
	}

	timer := time.NewTimer(p.flushInterval)
	defer timer.Stop()

	for len(batch) < p.batchSize {
		select {
		case ev := <-p.events:
			batch = append(batch, ev)
		case <-timer.C:
			return batch, true
		case <-ctx.Done():
			return batch, false
		}
	}
	return batch, true
}

// loadWithRetry writes the batch, backing off between failures. Returns false
// if ctx ended before the batch was written.
func (p *Pipeline) loadWithRetry(ctx context.Context, batch []domain.EnrichmentEvent, backoff *time.Duration) bool {
	for {
		err := p.loader.LoadBatch(ctx, batch)
		if err == nil {
			p.metrics.EventsPublished.Add(float64(len(batch)))
			p.metrics.EventBatchSize.Observe(float64(len(batch)))
			*backoff = initialBackoff
			return true
		}
		p.metrics.PublishErrors.Inc()
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("publish batch failed", "error", err, "batch_size", len(batch))
		if !sharedretry.SleepWithContext(ctx, *backoff) {
			return false
		}
		*backoff = sharedretry.NextBackoff(*backoff, maxBackoff)
	}
}

// drain makes one last attempt to write pending and buffered events.
func (p *Pipeline) drain(pending []domain.EnrichmentEvent) {
drainLoop:
	for {
		select {
		case ev := <-p.events:
			pending = append(pending, ev)
		default:
			break drainLoop
		}
	}
	if len(pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for start := 0; start < len(pending); start += p.batchSize {
		end := min(start+p.batchSize, len(pending))
		batch := pending[start:end]
		if err := p.loader.LoadBatch(ctx, batch); err != nil {
			p.logger.Warn("dropping events on shutdown", "error", err, "count", len(pending)-start)
			p.metrics.PublishErrors.Inc()
			p.metrics.EventsDropped.Add(float64(len(pending) - start))
			return
		}
		p.metrics.EventsPublished.Add(float64(len(batch)))
		p.metrics.EventBatchSize.Observe(float64(len(batch)))
	}
}
