// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navi_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navi_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ExternalRequests counts calls to Mapbox and S3. outcome is success,
	// failure or rejected (circuit open).
	ExternalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navi_external_requests_total",
			Help: "Outbound provider calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)

	ExternalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navi_external_request_duration_seconds",
			Help:    "Outbound provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navi_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	GeocodeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navi_geocode_cache_hits_total",
		Help: "Forward geocode lookups served from cache",
	})

	GeocodeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navi_geocode_cache_misses_total",
		Help: "Forward geocode lookups sent to the provider",
	})

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "navi_websocket_connections",
		Help: "Open realtime websocket connections",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navi_events_published_total",
			Help: "Domain events handed to the broker by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

// ObserveExternal records one provider call.
func ObserveExternal(provider, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ExternalRequests.WithLabelValues(provider, operation, outcome).Inc()
	ExternalDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// Middleware records request count and latency. The route label is the
// registered pattern, not the raw path, to keep cardinality bounded.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := c.Route().Path
		HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the default registry.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
