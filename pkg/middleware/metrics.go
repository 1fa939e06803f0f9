package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/flight/pkg/protocol"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "flight").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "flight",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the server's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inflight        prometheus.Gauge
	segments        *prometheus.CounterVec
	matches         *prometheus.CounterVec
	records         prometheus.Counter
	modules         prometheus.Counter
	streamErrors    *prometheus.CounterVec
	wsConnections   prometheus.Gauge
}

// Match results for RecordMatch.
const (
	MatchFound           = "matched"
	MatchNotFound        = "not_found"
	MatchOutsideBasename = "outside_basename"
)

// NewMetrics registers the collectors with the configured registry. Calling
// it twice against the same registry panics, as promauto does.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Metrics{
		requestsTotal: counter("requests_total",
			"Total number of requests by kind and status code", "kind", "code"),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Request duration in seconds, including the whole stream",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_inflight",
			Help:        "Number of requests being served",
			ConstLabels: config.ConstLabels,
		}),

		segments: counter("segments_total",
			"Route segments rendered or skipped because the client held them", "state"),

		matches: counter("matches_total",
			"Route match results", "result"),

		records: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "rehydration_records_total",
			Help:        "Data records sent for client rehydration",
			ConstLabels: config.ConstLabels,
		}),

		modules: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "client_modules_total",
			Help:        "Client module references sent",
			ConstLabels: config.ConstLabels,
		}),

		streamErrors: counter("stream_errors_total",
			"Segment streams that ended in an error, by category", "type"),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_connections",
			Help:        "Open websocket transport connections",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Handler is the request middleware. It counts requests by kind and
// status code and observes their duration.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := RequestKind(r)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		m.inflight.Inc()
		start := time.Now()
		defer func() {
			m.inflight.Dec()
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(ww, r)
	})
}

// RecordSegments adds a finished render's rendered and skipped segments.
func (m *Metrics) RecordSegments(rendered, skipped int) {
	if m == nil {
		return
	}
	m.segments.WithLabelValues("rendered").Add(float64(rendered))
	m.segments.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordMatch counts one match result.
func (m *Metrics) RecordMatch(result string) {
	if m != nil {
		m.matches.WithLabelValues(result).Inc()
	}
}

// RecordPayload counts data records and module references sent.
func (m *Metrics) RecordPayload(records, modules int) {
	if m == nil {
		return
	}
	m.records.Add(float64(records))
	m.modules.Add(float64(modules))
}

// RecordStreamError counts a failed stream.
func (m *Metrics) RecordStreamError(err error) {
	if m != nil && err != nil {
		m.streamErrors.WithLabelValues(categorizeError(err)).Inc()
	}
}

// RecordWebSocket tracks open websocket connections: +1 on open, -1 on
// close.
func (m *Metrics) RecordWebSocket(delta int) {
	if m != nil {
		m.wsConnections.Add(float64(delta))
	}
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	var em *protocol.ErrorMessage
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &em):
		return strings.ToLower(em.Code.String())
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "connection reset"):
		return "client_gone"
	case strings.Contains(msg, "load"):
		return "load"
	case strings.Contains(msg, "render"):
		return "render"
	case strings.Contains(msg, "websocket"):
		return "websocket"
	default:
		return "internal"
	}
}
