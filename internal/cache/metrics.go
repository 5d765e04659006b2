package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_requests_total",
			Help: "Cache reads by endpoint and outcome (hit, miss, shared)",
		},
		[]string{"endpoint", "result"},
	)

	cacheSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_superseded_total",
			Help: "Responses discarded because a newer request for the same entry was issued",
		},
		[]string{"endpoint"},
	)

	cacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_cache_evictions_total",
			Help: "Cache entries dropped after their grace period or on invalidation without subscribers",
		},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_invalidations_total",
			Help: "Tag invalidations triggered by successful mutations",
		},
		[]string{"tag"},
	)

	cacheMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_mutations_total",
			Help: "Mutations run through the cache by outcome",
		},
		[]string{"result"},
	)
)
