// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopsphere"

// Delivery outcomes recorded by the dispatcher
const (
	OutcomeDelivered = "delivered"
	OutcomeSkipped   = "skipped"
	OutcomeRetried   = "retried"
	OutcomeAbandoned = "abandoned"
	OutcomeFailed    = "failed"
	OutcomeMissing   = "missing"
)

// Metrics groups every collector the API and worker expose
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPLatencyMS     *prometheus.HistogramVec
	WebhookReceived   *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
	QueueEnqueued     *prometheus.CounterVec
	QueueHandled      *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	OrdersCreated     prometheus.Counter
	CacheLookups      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		HTTPLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		WebhookReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "received_total",
			Help:      "Inbound webhook events by verification result.",
		}, []string{"result"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		QueueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Tasks pushed to the delivery queue.",
		}, []string{"queue"}),
		QueueHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "handled_total",
			Help:      "Tasks processed by workers by result.",
		}, []string{"queue", "result"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Tasks in the delivery queue by state (pending, in_flight).",
		}, []string{"queue", "state"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_created_total",
			Help:      "Orders created by checkout.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPLatencyMS,
		m.WebhookReceived,
		m.WebhookDeliveries,
		m.QueueEnqueued,
		m.QueueHandled,
		m.QueueDepth,
		m.OrdersCreated,
		m.CacheLookups,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
