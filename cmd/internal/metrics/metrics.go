// Package metrics exposes Prometheus instrumentation for the auth subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the subsystem's collectors, registered on a private registry
// so tests can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	LoginAttempts    *prometheus.CounterVec
	Lockouts         prometheus.Counter
	RefreshRotations prometheus.Counter
	RefreshRejected  prometheus.Counter
	Logouts          *prometheus.CounterVec
	TokensRevoked    prometheus.Counter
	WSConnections    prometheus.Gauge
}

// New creates and registers the subsystem collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steenauth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "steenauth",
			Name:      "login_lockouts_total",
			Help:      "Logins rejected by the lockout guard.",
		}),
		RefreshRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "steenauth",
			Name:      "refresh_rotations_total",
			Help:      "Successful refresh-token rotations.",
		}),
		RefreshRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "steenauth",
			Name:      "refresh_rejected_total",
			Help:      "Refresh attempts rejected as invalid.",
		}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "steenauth",
			Name:      "logouts_total",
			Help:      "Logouts by scope (single or all).",
		}, []string{"scope"}),
		TokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "steenauth",
			Name:      "access_tokens_revoked_total",
			Help:      "Access-token ids added to the blacklist.",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "steenauth",
			Name:      "ws_connections",
			Help:      "Live websocket connections.",
		}),
	}

	reg.MustRegister(
		m.LoginAttempts,
		m.Lockouts,
		m.RefreshRotations,
		m.RefreshRejected,
		m.Logouts,
		m.TokensRevoked,
		m.WSConnections,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
