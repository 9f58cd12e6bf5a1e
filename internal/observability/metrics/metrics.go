// Package metrics holds the Prometheus collectors for the API and its access-control core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors so tests can register them on a private registry.
type Metrics struct {
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	AuthLoginsTotal            *prometheus.CounterVec
	TokensIssuedTotal          prometheus.Counter
	SessionsSweptTotal         prometheus.Counter
	AuthzDecisionsTotal        *prometheus.CounterVec
	AuditWritesTotal           *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Total number of login attempts.",
			},
			[]string{"result"},
		),
		TokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of session tokens issued.",
		}),
		SessionsSweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_swept_total",
			Help: "Total number of expired sessions deleted by the sweeper.",
		}),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_decisions_total",
				Help: "Authorization decisions by policy and result.",
			},
			[]string{"policy", "result"},
		),
		AuditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_writes_total",
				Help: "Activity log writes by result (written, failed, dropped).",
			},
			[]string{"result"},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.AuthLoginsTotal,
		m.TokensIssuedTotal,
		m.SessionsSweptTotal,
		m.AuthzDecisionsTotal,
		m.AuditWritesTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
