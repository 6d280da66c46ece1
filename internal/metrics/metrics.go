// Package metrics registers the Prometheus gauges/counters spec.md §6
// calls "Observable state": active stream counts, drain state, and sampled
// RTT. Grounded on the corpus's client_golang usage (packetd-packetd),
// generalized from per-packet counters to per-session/per-stream ones.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors one Acceptor needs. It is safe to
// register with a custom prometheus.Registerer (e.g. in tests, to avoid
// colliding with the global default registry).
type Registry struct {
	ActiveSessions   prometheus.Gauge
	ActiveStreams    prometheus.Gauge
	Draining         prometheus.Gauge
	BytesRead        prometheus.Counter
	BytesWritten     prometheus.Counter
	SampledRTT       prometheus.Gauge
	SessionsAccepted prometheus.Counter
	StreamErrors     *prometheus.CounterVec
}

// NewRegistry constructs a Registry and registers every collector with reg.
// Passing prometheus.NewRegistry() isolates tests; passing
// prometheus.DefaultRegisterer wires it into the process-wide /metrics
// endpoint.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpcore_active_sessions",
			Help: "Number of connections currently owned by an Acceptor.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpcore_active_streams",
			Help: "Number of in-flight transactions across all sessions.",
		}),
		Draining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpcore_draining",
			Help: "1 while the Acceptor is draining (Stop called, sessions still open), else 0.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_bytes_read_total",
			Help: "Total ingress bytes read from accepted connections.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_bytes_written_total",
			Help: "Total egress bytes written to accepted connections.",
		}),
		SampledRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "httpcore_sampled_rtt_seconds",
			Help: "Most recently sampled TCP_INFO RTT across active sessions.",
		}),
		SessionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "httpcore_sessions_accepted_total",
			Help: "Total connections accepted since process start.",
		}),
		StreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpcore_stream_errors_total",
			Help: "Stream-level errors observed, labeled by error code.",
		}, []string{"code"}),
	}
	reg.MustRegister(
		r.ActiveSessions, r.ActiveStreams, r.Draining,
		r.BytesRead, r.BytesWritten, r.SampledRTT,
		r.SessionsAccepted, r.StreamErrors,
	)
	return r
}
