package billingapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records outbound billing API calls.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the transport collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_api_requests_total",
		Help: "Outbound billing API requests by method and status code.",
	}, []string{"method", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_api_request_duration_seconds",
		Help:    "Latency of outbound billing API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	registerer.MustRegister(requests, duration)
	return &Metrics{requests: requests, duration: duration}
}

func (m *Metrics) observe(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
