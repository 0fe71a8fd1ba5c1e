// Package metrics exposes the Prometheus counters served at /metrics.
//
// A nil *Metrics is valid and records nothing, so services can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devnovate"

type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	moderationDecisions *prometheus.CounterVec
	likesToggled        *prometheus.CounterVec
}

// New builds a registry with the process and Go runtime collectors plus the
// application counters.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
		moderationDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Moderation actions that changed an article.",
		}, []string{"action"}),
		likesToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_toggled_total",
			Help:      "Like toggles, by resulting state.",
		}, []string{"liked"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.moderationDecisions,
		m.likesToggled,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts every request once its status is known.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	})
}

// ModerationDecision records an approve, reject, hide or delete.
func (m *Metrics) ModerationDecision(action string) {
	if m == nil {
		return
	}
	m.moderationDecisions.WithLabelValues(action).Inc()
}

// LikeToggled records the state a toggle left the like in.
func (m *Metrics) LikeToggled(liked bool) {
	if m == nil {
		return
	}
	m.likesToggled.WithLabelValues(strconv.FormatBool(liked)).Inc()
}
