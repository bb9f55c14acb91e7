package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and dispatcher flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	postbacksSentTotal   *prometheus.CounterVec
	postbacksFailedTotal *prometheus.CounterVec
	retryScheduledTotal  *prometheus.CounterVec
	claimConflictsTotal  prometheus.Counter
	deliveryDuration     *prometheus.HistogramVec
	dispatcherInflight   prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "postback_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "postback_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		postbacksSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "postback_engine",
				Name:      "postbacks_sent_total",
				Help:      "Total number of postbacks delivered successfully.",
			},
			[]string{"method"},
		),
		postbacksFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "postback_engine",
				Name:      "postbacks_failed_total",
				Help:      "Total number of postbacks that exhausted their attempt budget.",
			},
			[]string{"method", "reason"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "postback_engine",
				Name:      "retry_scheduled_total",
				Help:      "Total number of delivery attempts that scheduled a retry.",
			},
			[]string{"method"},
		),
		claimConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "postback_engine",
				Name:      "claim_conflicts_total",
				Help:      "Total number of due postbacks skipped because another worker held the claim.",
			},
		),
		deliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "postback_engine",
				Name:      "delivery_duration_seconds",
				Help:      "Outbound delivery attempt duration in seconds grouped by method.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"method"},
		),
		dispatcherInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "postback_engine",
				Name:      "dispatcher_inflight",
				Help:      "Current number of in-flight delivery attempts.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.postbacksSentTotal,
		m.postbacksFailedTotal,
		m.retryScheduledTotal,
		m.claimConflictsTotal,
		m.deliveryDuration,
		m.dispatcherInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncPostbackSent(method string) {
	if m == nil {
		return
	}
	m.postbacksSentTotal.WithLabelValues(normalizeMethod(method)).Inc()
}

func (m *Metrics) IncPostbackFailed(method string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.postbacksFailedTotal.WithLabelValues(normalizeMethod(method), reasonLabel).Inc()
}

func (m *Metrics) IncRetryScheduled(method string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeMethod(method)).Inc()
}

func (m *Metrics) IncClaimConflict() {
	if m == nil {
		return
	}
	m.claimConflictsTotal.Inc()
}

func (m *Metrics) ObserveDeliveryDuration(method string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliveryDuration.WithLabelValues(normalizeMethod(method)).Observe(seconds)
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.dispatcherInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.dispatcherInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeMethod(method string) string {
	normalized := strings.ToLower(strings.TrimSpace(method))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
