// Package metrics exposes Prometheus collectors for the client core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BackendCalls counts remote operations by outcome.
	BackendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorecoins_backend_calls_total",
			Help: "Total backend operations",
		},
		[]string{"op", "outcome"},
	)

	// BackendDuration tracks remote operation latency.
	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chorecoins_backend_duration_seconds",
			Help: "Backend operation duration in seconds",
		},
		[]string{"op"},
	)

	// ToggleRejections counts toggles rejected because one was already in
	// flight for the same chore.
	ToggleRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chorecoins_toggle_rejections_total",
			Help: "Toggles rejected by the per-chore in-flight guard",
		},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(BackendCalls, BackendDuration, ToggleRejections)
}

// ObserveBackendCall records one backend operation.
func ObserveBackendCall(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	BackendCalls.WithLabelValues(op, outcome).Inc()
	BackendDuration.WithLabelValues(op).Observe(d.Seconds())
}
