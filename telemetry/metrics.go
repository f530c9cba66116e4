// Package telemetry exports Prometheus metrics for a switchboard server.
package telemetry

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sagarc03/switchboard"
)

// Config holds configuration for the server metrics.
type Config struct {
	Logger *slog.Logger

	// Namespace for metrics (e.g., "switchboard")
	Namespace string

	// Subsystem for metrics (e.g., "http")
	Subsystem string

	// Buckets for the request duration histogram
	Buckets []float64

	// Registry receives the collectors and backs Handler. A fresh registry
	// is created when nil.
	Registry *prometheus.Registry
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig(namespace string) *Config {
	return &Config{
		Namespace: namespace,
		Subsystem: "http",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}
}

// Metrics holds the server's collectors.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	deniedTotal     prometheus.Counter
	disconnects     prometheus.Counter
	exceptions      prometheus.Counter
	activeRequests  prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics(cfg *Config) *Metrics {
	if cfg == nil {
		cfg = DefaultConfig("switchboard")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	logger.Info("initializing prometheus metrics",
		"namespace", cfg.Namespace,
		"subsystem", cfg.Subsystem,
	)

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		logger:   logger,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of requests processed by the pipeline",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Request latency in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "route", "status"},
		),
		responseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "response_size_bytes",
				Help:      "Response body size in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 7), // 100B to 100MB
			},
			[]string{"method", "route", "status"},
		),
		deniedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_denied_total",
			Help:      "Requests rejected by access control",
		}),
		disconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requestor_disconnects_total",
			Help:      "Responses cut short by the client going away",
		}),
		exceptions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "exceptions_total",
			Help:      "Handler errors and panics",
		}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_active",
			Help:      "Requests currently in the pipeline",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one finished request.
func (m *Metrics) Observe(c *switchboard.Context, elapsed time.Duration) {
	method := c.Request.Method
	route := RouteLabel(c.Route)
	status := strconv.Itoa(c.Response.StatusCode)

	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
	m.responseSize.WithLabelValues(method, route, status).Observe(float64(c.Response.BytesSent()))

	m.logger.Debug("request metrics recorded",
		"method", method,
		"route", route,
		"status", status,
		"duration", elapsed,
	)
}

// PostRouting returns a PostRouting hook that records the request. Use it
// instead of Instrument, not with it.
func (m *Metrics) PostRouting() switchboard.Handler {
	return func(c *switchboard.Context) error {
		m.Observe(c, time.Since(c.Request.Timestamp))
		return nil
	}
}

// Instrument attaches the metrics to s through its events, keeping any
// callbacks already set.
func (m *Metrics) Instrument(s *switchboard.Server) {
	ev := s.Events

	received := ev.RequestReceived
	ev.RequestReceived = func(c *switchboard.Context) {
		m.activeRequests.Inc()
		if received != nil {
			received(c)
		}
	}

	sent := ev.ResponseSent
	ev.ResponseSent = func(c *switchboard.Context, elapsed time.Duration) {
		m.activeRequests.Dec()
		m.Observe(c, elapsed)
		if sent != nil {
			sent(c, elapsed)
		}
	}

	denied := ev.RequestDenied
	ev.RequestDenied = func(c *switchboard.Context) {
		m.deniedTotal.Inc()
		if denied != nil {
			denied(c)
		}
	}

	disconnected := ev.RequestorDisconnected
	ev.RequestorDisconnected = func(c *switchboard.Context) {
		m.disconnects.Inc()
		if disconnected != nil {
			disconnected(c)
		}
	}

	exception := ev.ExceptionEncountered
	ev.ExceptionEncountered = func(c *switchboard.Context, err error) {
		m.exceptions.Inc()
		if exception != nil {
			exception(c, err)
		}
	}
}

// HTTPHandler serves the registry in the Prometheus text format.
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Handler is HTTPHandler as a route handler.
func (m *Metrics) Handler() switchboard.Handler {
	return switchboard.FromHTTPHandler(m.HTTPHandler())
}

// RouteLabel is a low-cardinality label for the route that handled a
// request: the registered pattern for table routes, the stage otherwise.
func RouteLabel(r switchboard.MatchedRoute) string {
	switch r.Kind {
	case switchboard.RouteKindStatic, switchboard.RouteKindParameter,
		switchboard.RouteKindDynamic, switchboard.RouteKindContent:
		return string(r.Kind) + ":" + r.Path
	case switchboard.RouteKindNone:
		return "none"
	default:
		return string(r.Kind)
	}
}
