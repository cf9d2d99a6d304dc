package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "georisk",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Risk backend client
	RiskRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "riskapi",
		Name:      "requests_total",
		Help:      "Risk backend calls by outcome (ok, not_configured, transport, malformed, invalid_geometry)",
	}, []string{"outcome"})

	RiskRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "georisk",
		Subsystem: "riskapi",
		Name:      "request_duration_seconds",
		Help:      "Risk backend round trip latency",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Coordinator
	QueriesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "coordinator",
		Name:      "queries_issued_total",
		Help:      "Queries started by session coordinators, by trigger (point, radius)",
	}, []string{"trigger"})

	SupersededResponses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "coordinator",
		Name:      "superseded_responses_total",
		Help:      "Responses dropped because a newer generation was current",
	})

	DebounceRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "coordinator",
		Name:      "debounce_restarts_total",
		Help:      "Radius edits that replaced a pending debounce timer",
	})

	SettledFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "coordinator",
		Name:      "settled_failures_total",
		Help:      "Current-generation queries that settled as failed, by error kind",
	}, []string{"kind"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "georisk",
		Subsystem: "ws",
		Name:      "active_sessions",
		Help:      "Current number of open map sessions",
	})

	// Audit pipeline
	AssessmentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "georisk",
		Subsystem: "audit",
		Name:      "assessments_recorded_total",
		Help:      "Assessment events stored by the auditor, by outcome",
	}, []string{"outcome"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
