package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disaster_enrich"

// Dependency labels for external call metrics.
const (
	DependencyAIText     = "ai_text"
	DependencyAIVision   = "ai_vision"
	DependencyGeocoder   = "geocoder"
	DependencyImageFetch = "image_fetch"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the enrichment service.
type Metrics struct {
	EnrichmentRequests *prometheus.CounterVec   // labels: operation={location,verify}, outcome={ok,degraded,failed}
	EnrichmentDuration *prometheus.HistogramVec // labels: operation

	// Cache-aside metrics.
	CacheOperations *prometheus.CounterVec // labels: operation={get,put}, result={hit,miss,expired,stored,error}

	// Remote dependency metrics.
	ExternalCalls        *prometheus.CounterVec   // labels: dependency, outcome={success,error}
	ExternalCallDuration *prometheus.HistogramVec // labels: dependency

	// Event dispatch metrics.
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	PublishErrors   prometheus.Counter
	EventBatchSize  prometheus.Histogram
	PipelineRunning prometheus.Gauge

	AIEnabled       prometheus.Gauge
	GeocoderEnabled prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EnrichmentRequests,
		m.EnrichmentDuration,
		m.CacheOperations,
		m.ExternalCalls,
		m.ExternalCallDuration,
		m.EventsPublished,
		m.EventsDropped,
		m.PublishErrors,
		m.EventBatchSize,
		m.PipelineRunning,
		m.AIEnabled,
		m.GeocoderEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EnrichmentRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Enrichment requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		EnrichmentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "End-to-end enrichment duration including cache lookups.",
			Buckets:   []float64{0.005, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}),
		CacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache store operations by operation and result.",
		}, []string{"operation", "result"}),
		ExternalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to remote dependencies by dependency and outcome.",
		}, []string{"dependency", "outcome"}),
		ExternalCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Remote dependency call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"dependency"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Enrichment events written to the event topic.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Enrichment events discarded because the dispatch buffer was full or closed.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed event batch writes.",
		}),
		EventBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_batch_size",
			Help:      "Number of events per published batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the event dispatch loop is running.",
		}),
		AIEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ai_enabled",
			Help:      "1 when a generative model client is configured, 0 otherwise.",
		}),
		GeocoderEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocoder_enabled",
			Help:      "1 when a geocoding provider is configured, 0 otherwise.",
		}),
	}
}

// ObserveExternalCall records the outcome and latency of a remote call that started at start.
func (m *Metrics) ObserveExternalCall(dependency string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.ExternalCalls.WithLabelValues(dependency, outcome).Inc()
	m.ExternalCallDuration.WithLabelValues(dependency).Observe(time.Since(start).Seconds())
}

// ObserveCache records a cache store operation.
func (m *Metrics) ObserveCache(operation, result string) {
	if m == nil {
		return
	}
	m.CacheOperations.WithLabelValues(operation, result).Inc()
}

// ObserveEnrichment records a completed enrichment.
func (m *Metrics) ObserveEnrichment(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.EnrichmentRequests.WithLabelValues(operation, outcome).Inc()
	m.EnrichmentDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
