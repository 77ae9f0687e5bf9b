// Package metrics exposes prometheus instrumentation for the service.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a dedicated registry so tests can build isolated instances.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	sideEffectFailures *prometheus.CounterVec
	authOutcomes       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	httpInFlight       prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantauth_side_effect_failures_total",
			Help: "Best-effort side effects that failed and were swallowed.",
		}, []string{"effect"}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantauth_auth_outcomes_total",
			Help: "Tenant registration and login outcomes by code.",
		}, []string{"flow", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sideEffectFailures,
		m.authOutcomes,
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SideEffectFailed counts one swallowed failure of the named effect.
func (m *Metrics) SideEffectFailed(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(effect).Inc()
}

// SideEffectFailures returns the counter for effect. Used by tests.
func (m *Metrics) SideEffectFailures(effect string) prometheus.Counter {
	return m.sideEffectFailures.WithLabelValues(effect)
}

// AuthOutcome counts a registration or login result, e.g. ("login", "NOT_A_MEMBER").
func (m *Metrics) AuthOutcome(flow, outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(flow, outcome).Inc()
}

// AuthOutcomes returns the counter for a flow/outcome pair. Used by tests.
func (m *Metrics) AuthOutcomes(flow, outcome string) prometheus.Counter {
	return m.authOutcomes.WithLabelValues(flow, outcome)
}

// Instrument records RPS, latency and in-flight requests per matched route.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.httpInFlight.Inc()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpInFlight.Dec()
	}
}
