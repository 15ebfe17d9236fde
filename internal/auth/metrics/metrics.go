// Package metrics holds the service's Prometheus collectors. Methods are safe
// to call on a nil *Metrics so callers never need to guard them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsvc"

// Session sources.
const (
	SourceCredentials = "credentials"
	SourceRefresh     = "refresh"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsIssued    *prometheus.CounterVec
	bearerRejections  *prometheus.CounterVec
	refreshFailures   *prometheus.CounterVec
	reuseDetected     prometheus.Counter
	refreshTokensGone prometheus.Counter
}

// New registers all collectors on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Sessions minted, by source.",
		}, []string{"source"}),
		bearerRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bearer_rejections_total",
			Help:      "Bearer tokens rejected, by reason.",
		}, []string{"reason"}),
		refreshFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Refresh attempts that did not mint a session, by reason.",
		}, []string{"reason"}),
		reuseDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_reuse_detected_total",
			Help:      "Presentations of an already consumed refresh token.",
		}),
		refreshTokensGone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_pruned_total",
			Help:      "Refresh token rows removed by retention housekeeping.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsIssued,
		m.bearerRejections,
		m.refreshFailures,
		m.reuseDetected,
		m.refreshTokensGone,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests. It is nil for
// a nil *Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionIssued(source string) {
	if m == nil {
		return
	}
	m.sessionsIssued.WithLabelValues(source).Inc()
}

func (m *Metrics) BearerRejected(reason string) {
	if m == nil {
		return
	}
	m.bearerRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RefreshFailed(reason string) {
	if m == nil {
		return
	}
	m.refreshFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReuseDetected() {
	if m == nil {
		return
	}
	m.reuseDetected.Inc()
}

func (m *Metrics) RefreshTokensPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.refreshTokensGone.Add(float64(n))
}
