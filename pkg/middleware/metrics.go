package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vnative/pkg/bridge"
)

// MetricsConfig configures the Prometheus bridge observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vnative").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus bridge observer.
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

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vnative",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metrics for bridge traffic and sessions.
// It implements bridge.Observer.
type Metrics struct {
	callsTotal     *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	callErrors     *prometheus.CounterVec
	activeSessions prometheus.Gauge
	sessionsTotal  prometheus.Counter
	wsErrors       *prometheus.CounterVec

	registry prometheus.Registerer
}

// Prometheus creates an observer that collects Prometheus metrics for every
// bridge call in both directions.
//
// Metrics collected:
//   - vnative_bridge_calls_total: Counter of calls by direction, method and status
//   - vnative_bridge_call_duration_seconds: Histogram of call duration
//   - vnative_bridge_call_errors_total: Counter of failed calls by error type
//   - vnative_active_sessions: Gauge of connected native peers
//   - vnative_sessions_total: Counter of accepted sessions
//   - vnative_websocket_errors_total: Counter of WebSocket errors
//
// Example:
//
//	m := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	config := server.DefaultServerConfig()
//	config.Observer = m
//	config.MetricsHandler = m.Handler()
//
// Each call registers new collectors, so use one Metrics per registry.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_calls_total",
			Help:        "Total number of bridge calls",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "method", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_call_duration_seconds",
			Help:        "Bridge call duration in seconds, from send to reply",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"direction", "method"}),

		callErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bridge_call_errors_total",
			Help:        "Total number of failed bridge calls",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "method", "error_type"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected native peers",
			ConstLabels: config.ConstLabels,
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_total",
			Help:        "Total number of accepted sessions",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		registry: config.Registry,
	}
}

// ObserveCall implements bridge.Observer.
func (m *Metrics) ObserveCall(_ context.Context, info bridge.CallInfo) func(error) {
	direction := info.Direction.String()
	method := methodLabel(info)
	start := time.Now()

	return func(err error) {
		m.callDuration.WithLabelValues(direction, method).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.callErrors.WithLabelValues(direction, method, categorizeError(err)).Inc()
		}
		m.callsTotal.WithLabelValues(direction, method, status).Inc()
	}
}

// SessionOpened records an accepted session.
func (m *Metrics) SessionOpened() {
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

// SessionClosed records a closed session.
func (m *Metrics) SessionClosed() {
	m.activeSessions.Dec()
}

// RecordWebSocketError records a WebSocket error.
func (m *Metrics) RecordWebSocketError(errorType string) {
	m.wsErrors.WithLabelValues(errorType).Inc()
}

// Handler serves the metrics of the observer's registry. Registries that
// cannot be gathered fall back to the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if g, ok := m.registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// methodLabel names a call as module.method; inbound calls have no module.
func methodLabel(info bridge.CallInfo) string {
	if info.Module == "" {
		return info.Method
	}
	return info.Module + "." + info.Method
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	var nerr *bridge.NativeError
	var perr *bridge.PanicError
	switch {
	case errors.As(err, &nerr):
		return "native"
	case errors.As(err, &perr):
		return "panic"
	case errors.Is(err, bridge.ErrContextDisposed):
		return "disposed"
	case errors.Is(err, bridge.ErrTransportClosed):
		return "transport"
	case errors.Is(err, bridge.ErrUnknownMethod):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
