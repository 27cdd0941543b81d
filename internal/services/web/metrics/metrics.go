// Package metrics exposes Prometheus metrics for the web service on a
// private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kumia-devs/onboarding/internal/services/web/navigation"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

const namespace = "kumia_web"

// Metrics holds the web service collectors.
type Metrics struct {
	registry *prometheus.Registry

	SessionOperations *prometheus.CounterVec
	GuardDecisions    *prometheus.CounterVec
	Controllers       prometheus.Gauge
	RateLimited       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWith(reg)
}

// NewWith registers the service collectors on reg.
func NewWith(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		SessionOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session controller operations by outcome.",
		}, []string{"operation", "result"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Screen guard decisions.",
		}, []string{"screen", "outcome", "target"}),
		Controllers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_controllers",
			Help:      "Live per-browser session controllers.",
		}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(
		m.SessionOperations,
		m.GuardDecisions,
		m.Controllers,
		m.RateLimited,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordOperation implements session.OperationRecorder.
func (m *Metrics) RecordOperation(operation string, result session.Result) {
	if m == nil {
		return
	}
	label := "success"
	if !result.Success {
		label = string(result.Kind)
		if label == "" {
			label = string(session.KindUnknown)
		}
	}
	m.SessionOperations.WithLabelValues(operation, label).Inc()
}

// ObserveDecision implements guard.Observer.
func (m *Metrics) ObserveDecision(screen navigation.Screen, decision navigation.Decision) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(string(screen), decision.Outcome.String(), string(decision.Target)).Inc()
}

// SetControllers is a session.Manager size callback.
func (m *Metrics) SetControllers(size int) {
	if m == nil {
		return
	}
	m.Controllers.Set(float64(size))
}

// CountRateLimited records a rejected request for route.
func (m *Metrics) CountRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// Instrument wraps next with request counting and latency for route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerCounter(
		m.HTTPRequests.MustCurryWith(labels),
		promhttp.InstrumentHandlerDuration(m.HTTPDuration.MustCurryWith(labels), next),
	)
}
