package workspace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workspacesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_workspaces_active",
		Help: "Visitor workspaces currently held in memory",
	})
	workspacesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_workspaces_evicted_total",
		Help: "Workspaces dropped to stay under the workspace limit",
	})
)
