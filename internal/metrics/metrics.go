// Package metrics exposes Prometheus counters and histograms for the
// platform: HTTP traffic by route, auth outcomes, and object uploads.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/scribe/internal/apperror"
)

// Recorder is the narrow interface services use to report domain events.
// Plugins depend on this rather than on *Collector so tests can pass Nop.
type Recorder interface {
	AuthEvent(kind string, ok bool)
	ObjectStored(bucket string, size int64)
}

// Collector holds the registered Prometheus metrics.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	auth     *prometheus.CounterVec
	uploads  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_auth_events_total",
			Help: "Auth provider operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_objects_stored_total",
			Help: "Objects written to the object store by bucket.",
		}, []string{"bucket"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_object_bytes_total",
			Help: "Bytes written to the object store by bucket.",
		}, []string{"bucket"}),
	}
	reg.MustRegister(c.requests, c.latency, c.auth, c.uploads, c.bytes)
	return c
}

// AuthEvent counts a signup, login, refresh, logout, recover or verify.
func (c *Collector) AuthEvent(kind string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.auth.WithLabelValues(kind, outcome).Inc()
}

// ObjectStored counts an accepted upload.
func (c *Collector) ObjectStored(bucket string, size int64) {
	c.uploads.WithLabelValues(bucket).Inc()
	c.bytes.WithLabelValues(bucket).Add(float64(size))
}

// Middleware records request counts and latency. The route label is the
// registered path pattern, not the raw URL, to keep cardinality bounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = apperror.SafeCode(err)
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			c.requests.WithLabelValues(ctx.Request().Method, route, strconv.Itoa(status)).Inc()
			c.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every event.
type Nop struct{}

func (Nop) AuthEvent(string, bool)     {}
func (Nop) ObjectStored(string, int64) {}
