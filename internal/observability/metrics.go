// Package observability wires Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry, so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	BlocksCreated        prometheus.Counter
	BlocksUpdated        prometheus.Counter
	BlocksDeleted        prometheus.Counter
	RelationshipsCreated prometheus.Counter
	RelationshipsDeleted prometheus.Counter
	VersionConflicts     prometheus.Counter
	OpenGraphs           prometheus.Gauge
	ExportsRendered      *prometheus.CounterVec
	PersonaRequests      *prometheus.CounterVec

	// Gateway metrics
	GatewayOperations *prometheus.CounterVec
	GatewayDuration   *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates the metrics under namespace and registers them.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	c := &Collector{
		registry: registry,
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
		BlocksCreated:        counter("blocks_created_total", "Total number of knowledge blocks created"),
		BlocksUpdated:        counter("blocks_updated_total", "Total number of knowledge block updates"),
		BlocksDeleted:        counter("blocks_deleted_total", "Total number of knowledge blocks deleted"),
		RelationshipsCreated: counter("relationships_created_total", "Total number of relationships created"),
		RelationshipsDeleted: counter("relationships_deleted_total", "Total number of relationships deleted, cascades included"),
		VersionConflicts:     counter("version_conflicts_total", "Total number of block updates rejected by a version check"),
		OpenGraphs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_project_graphs",
			Help:      "Number of project graphs held in memory",
		}),
		ExportsRendered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_rendered_total",
				Help:      "Total number of exports rendered",
			},
			[]string{"format"},
		),
		PersonaRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persona_requests_total",
				Help:      "Total number of persona prompts",
			},
			[]string{"persona", "outcome"},
		),
		GatewayOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_operations_total",
				Help:      "Total number of persistence gateway operations",
			},
			[]string{"operation", "table", "status"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_operation_duration_seconds",
				Help:      "Persistence gateway operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		CacheHits:   counter("cache_hits_total", "Total number of listing cache hits"),
		CacheMisses: counter("cache_misses_total", "Total number of listing cache misses"),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.BlocksCreated,
		c.BlocksUpdated,
		c.BlocksDeleted,
		c.RelationshipsCreated,
		c.RelationshipsDeleted,
		c.VersionConflicts,
		c.OpenGraphs,
		c.ExportsRendered,
		c.PersonaRequests,
		c.GatewayOperations,
		c.GatewayDuration,
		c.CacheHits,
		c.CacheMisses,
	)
	return c
}

// ObserveGateway records one gateway call.
func (c *Collector) ObserveGateway(operation, table, status string, d time.Duration) {
	c.GatewayOperations.WithLabelValues(operation, table, status).Inc()
	c.GatewayDuration.WithLabelValues(operation, table).Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route, status string, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
