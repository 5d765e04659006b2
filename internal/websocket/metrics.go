package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dashboard_websocket_clients",
	Help: "Open websocket connections.",
})
