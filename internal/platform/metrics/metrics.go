package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds transport-level Prometheus metrics for the application.
// Settlement metrics live with the ledger and pool services.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	AuthFailures    prometheus.Counter
	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all transport metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolpay_http_requests_total",
			Help: "Total number of HTTP requests, labeled by status class",
		}, []string{"status"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_auth_failures_total",
			Help: "Total number of rejected bearer tokens",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poolpay_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) IncrementRequests(statusClass string) {
	m.RequestsTotal.WithLabelValues(statusClass).Inc()
}

func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailures.Inc()
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
