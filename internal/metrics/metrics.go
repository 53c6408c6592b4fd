package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Watcher metrics
	ObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svitlobot_observations_total",
		Help: "The total number of observations folded into the state engine",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svitlobot_transitions_total",
		Help: "The total number of committed power state transitions by direction",
	}, []string{"direction"})

	PowerOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svitlobot_power_online",
		Help: "Current debounced power state (1=online, 0=offline)",
	})

	ObservationAgeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svitlobot_observation_age_seconds",
		Help: "Age of the most recent observation at last evaluation",
	})

	RefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "svitlobot_entity_refreshes_total",
		Help: "The total number of forced entity refresh requests sent to Home Assistant",
	})

	// Ping dispatcher metrics
	PingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "svitlobot_pings_total",
		Help: "The total number of channelPing requests by status",
	}, []string{"status"})

	// Home Assistant client metrics
	HassConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "svitlobot_hass_connection_status",
		Help: "Status of the Home Assistant connection (1=connected, 0=disconnected)",
	})
)
