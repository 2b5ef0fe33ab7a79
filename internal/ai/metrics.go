package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics, exported on the default registry and served by the
// /metrics endpoint.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collabd_ai_requests_total",
		Help: "AI provider invocations by provider, operation, and status (ok, error, rate_limited).",
	}, []string{"provider", "operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collabd_ai_request_duration_seconds",
		Help:    "AI provider invocation duration in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider", "operation"})
)

func observeRequest(provider, operation, status string, duration time.Duration) {
	requestsTotal.WithLabelValues(provider, operation, status).Inc()
	if duration > 0 {
		requestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	}
}
