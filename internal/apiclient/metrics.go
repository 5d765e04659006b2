package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_upstream_requests_total",
			Help: "Requests sent to the inventory API by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_upstream_request_duration_seconds",
			Help:    "Latency of requests sent to the inventory API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_upstream_circuit_state",
			Help: "State of the upstream circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
