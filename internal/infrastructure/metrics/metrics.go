// Package metrics exposes Prometheus metrics for the HTTP surface, the
// posting engine and the outbox relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mfgerp/internal/domain/posting"
)

// Metrics holds all service metrics on a private registry.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Posting metrics
	ReconcileTotal    *prometheus.CounterVec
	ReconcileDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxDelivered *prometheus.CounterVec
}

var _ posting.Metrics = (*Metrics)(nil)

// Config holds metrics configuration.
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "mfgerp",
	}
}

// New creates a new Metrics instance.
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "posting_reconcile_total",
			Help:      "Stock move reconciliations by reconciler and outcome",
		},
		[]string{"service", "reconciler", "outcome"},
	)

	m.ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "posting_reconcile_duration_seconds",
			Help:      "Reconciler run time in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "reconciler"},
	)

	m.OutboxDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages handled by the relay",
		},
		[]string{"service", "event_type", "status"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ReconcileTotal,
		m.ReconcileDuration,
		m.OutboxDelivered,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// ObserveReconcile implements posting.Metrics. Runs rejected before a
// reconciler was picked carry a zero duration and are only counted.
func (m *Metrics) ObserveReconcile(kind, outcome string, d time.Duration) {
	m.ReconcileTotal.WithLabelValues(m.serviceName, kind, outcome).Inc()
	if d > 0 {
		m.ReconcileDuration.WithLabelValues(m.serviceName, kind).Observe(d.Seconds())
	}
}

// RecordOutboxDelivery counts one relay attempt.
func (m *Metrics) RecordOutboxDelivery(eventType string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.OutboxDelivered.WithLabelValues(m.serviceName, eventType, status).Inc()
}
