// Package observability holds the Prometheus collector and the HTTP
// middleware that feeds it and the tracer.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph metrics
	Derivations        *prometheus.CounterVec
	DerivationDuration *prometheus.HistogramVec
	SimilarityEdges    prometheus.Histogram
	LevelTransitions   *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	SessionsEvicted    prometheus.Counter

	// Store metrics
	StoreOperations     *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec
	CircuitBreakerState *prometheus.GaugeVec

	EventsPublished *prometheus.CounterVec
}

// NewCollector creates a collector with the given namespace. Go runtime and
// process collectors are registered alongside.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Derivations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_derivations_total",
				Help:      "Graph data derivations by level and outcome",
			},
			[]string{"level", "status"},
		),
		DerivationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_derivation_duration_seconds",
				Help:      "Time spent deriving graph data",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"level"},
		),
		SimilarityEdges: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_similarity_edges",
				Help:      "Number of similarity edges in derived macro graphs",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		LevelTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_level_transitions_total",
				Help:      "Level transitions by source and target level",
			},
			[]string{"from", "to"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_active_sessions",
				Help:      "Number of open graph sessions",
			},
		),
		SessionsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_sessions_evicted_total",
				Help:      "Sessions evicted after being idle",
			},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Idea store operations by outcome",
			},
			[]string{"operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Idea store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events by type and outcome",
			},
			[]string{"type", "status"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPDuration,
		c.Derivations,
		c.DerivationDuration,
		c.SimilarityEdges,
		c.LevelTransitions,
		c.ActiveSessions,
		c.SessionsEvicted,
		c.StoreOperations,
		c.StoreDuration,
		c.CircuitBreakerState,
		c.EventsPublished,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveDerivation records one graph derivation.
func (c *Collector) ObserveDerivation(level string, started time.Time, err error) {
	c.Derivations.WithLabelValues(level, status(err)).Inc()
	c.DerivationDuration.WithLabelValues(level).Observe(time.Since(started).Seconds())
}

// ObserveStore records one idea store call.
func (c *Collector) ObserveStore(operation string, started time.Time, err error) {
	c.StoreOperations.WithLabelValues(operation, status(err)).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveEvent records one publish attempt.
func (c *Collector) ObserveEvent(eventType string, err error) {
	c.EventsPublished.WithLabelValues(eventType, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
