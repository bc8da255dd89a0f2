// Package metrics exposes Prometheus collectors for the connection-dispatch
// engine: handoff queue depth, live session count, active workers, and
// sockets-per-worker.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the dispatch engine updates. Callers treat
// a nil *Metrics as "disabled" and guard each use with a nil check rather
// than registering collectors no one scrapes.
type Metrics struct {
	HandoffQueueDepth prometheus.Gauge
	ActiveSessions    prometheus.Gauge
	ActiveWorkers     prometheus.Gauge
	SocketsPerWorker  *prometheus.GaugeVec
	AcceptedTotal     prometheus.Counter
	DispatchedTotal   prometheus.Counter
	AcceptErrorsTotal prometheus.Counter
}

// New registers and returns the collector set against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to use the global one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HandoffQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vaultd",
			Name:      "handoff_queue_depth",
			Help:      "Current depth hint of the acceptor-to-worker handoff queue.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vaultd",
			Name:      "active_sessions",
			Help:      "Number of live sessions in the registry.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vaultd",
			Name:      "active_workers",
			Help:      "Number of worker goroutines currently running.",
		}),
		SocketsPerWorker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vaultd",
			Name:      "sockets_per_worker",
			Help:      "Number of sockets each worker currently multiplexes.",
		}, []string{"worker_id"}),
		AcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "accepted_connections_total",
			Help:      "Total connections accepted by the acceptor loop.",
		}),
		DispatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "dispatched_total",
			Help:      "Total serve() dispatches across all workers.",
		}),
		AcceptErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "accept_errors_total",
			Help:      "Total non-fatal accept-loop errors (e.g. handoff queue full).",
		}),
	}

	reg.MustRegister(
		m.HandoffQueueDepth,
		m.ActiveSessions,
		m.ActiveWorkers,
		m.SocketsPerWorker,
		m.AcceptedTotal,
		m.DispatchedTotal,
		m.AcceptErrorsTotal,
	)
	return m
}
