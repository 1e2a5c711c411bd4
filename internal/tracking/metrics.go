package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_location_updates_total",
		Help: "Driver location updates accepted by the hub.",
	})
	broadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_broadcast_failures_total",
		Help: "Observer sends that failed and led to deregistration.",
	})
	prunedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_pruned_records_total",
		Help: "Last-known locations removed by the retention sweeper.",
	})
	connectedDrivers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_connected_drivers",
		Help: "Driver websocket connections currently registered.",
	})
	connectedObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_connected_observers",
		Help: "Observer websocket connections currently registered.",
	})
)
