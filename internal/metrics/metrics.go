// Package metrics exposes Prometheus instrumentation for the API server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	published prometheus.Counter
	dropped   prometheus.Counter
	streams   *prometheus.GaugeVec
}

// New registers the server collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubfreelance",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hubfreelance",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hubfreelance",
			Name:      "realtime_published_total",
			Help:      "Message-inserted events published to the broker.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hubfreelance",
			Name:      "realtime_dropped_total",
			Help:      "Events dropped because a subscriber was slow or gone.",
		}),
		streams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hubfreelance",
			Name:      "realtime_subscribers",
			Help:      "Open realtime subscriptions by transport.",
		}, []string{"transport"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.published, m.dropped, m.streams,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					code = he.Code
				} else {
					code = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
			m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Published counts one broker publish.
func (m *Metrics) Published() { m.published.Inc() }

// Dropped counts one undelivered event.
func (m *Metrics) Dropped() { m.dropped.Inc() }

// StreamOpened and StreamClosed track live subscriptions per transport
// ("grpc" or "websocket").
func (m *Metrics) StreamOpened(transport string) { m.streams.WithLabelValues(transport).Inc() }

func (m *Metrics) StreamClosed(transport string) { m.streams.WithLabelValues(transport).Dec() }
