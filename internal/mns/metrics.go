package mns

import "github.com/prometheus/client_golang/prometheus"

var (
	registeredInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "registered_instances",
			Help:      "Number of registered client instances",
		},
	)

	acceptorsRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "acceptors_running",
			Help:      "Acceptors currently listening, by transport kind",
		},
		[]string{"kind"},
	)

	acceptorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "acceptor_failures_total",
			Help:      "Acceptor failures by transport kind and stage (listen, accept, wire)",
		},
		[]string{"kind", "stage"},
	)

	connectionsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "connections_accepted_total",
			Help:      "Inbound connections accepted, by transport kind",
		},
		[]string{"kind"},
	)

	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "sessions_active",
			Help:      "Tracked sessions, by transport kind",
		},
		[]string{"kind"},
	)

	reportsRouted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "reports_routed_total",
			Help:      "Event reports delivered to a registered listener",
		},
	)

	reportsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnsd",
			Subsystem: "mns",
			Name:      "reports_dropped_total",
			Help:      "Event reports dropped, by reason",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(registeredInstances, acceptorsRunning, acceptorFailures,
		connectionsAccepted, sessionsActive, reportsRouted, reportsDropped)
}
