// Package metrics exposes prometheus instruments for the HTTP surface and
// the procurement domain.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application-level instruments.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	requisitionsSubmitted *prometheus.CounterVec
	decisionsRecorded     *prometheus.CounterVec
	isolationViolations   prometheus.Counter
	signupsRateLimited    prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procura_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "procura_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		requisitionsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procura_requisitions_submitted_total",
			Help: "Requisitions submitted for approval.",
		}, []string{"org_id"}),
		decisionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procura_approval_decisions_total",
			Help: "Approval decisions recorded, by stance.",
		}, []string{"decision"}),
		isolationViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procura_isolation_violations_total",
			Help: "Cross-tenant access attempts denied.",
		}),
		signupsRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procura_signups_rate_limited_total",
			Help: "Signup requests rejected by the rate limiter.",
		}),
	}
	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.requisitionsSubmitted,
		m.decisionsRecorded,
		m.isolationViolations,
		m.signupsRateLimited,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordRequisitionSubmitted(orgID string) {
	if m == nil {
		return
	}
	m.requisitionsSubmitted.WithLabelValues(strings.TrimSpace(orgID)).Inc()
}

func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisionsRecorded.WithLabelValues(strings.TrimSpace(decision)).Inc()
}

func (m *Metrics) RecordIsolationViolation() {
	if m == nil {
		return
	}
	m.isolationViolations.Inc()
}

func (m *Metrics) RecordSignupRateLimited() {
	if m == nil {
		return
	}
	m.signupsRateLimited.Inc()
}
