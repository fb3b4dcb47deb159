// Package metrics collects and exposes the server's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the slice of the collector used by the service layer.
type Recorder interface {
	RecordAuthEvent(event string)
	RecordDocumentWrites(collection string, count int)
	SubscriptionOpened()
	SubscriptionClosed()
}

// Collector is the Prometheus implementation of Recorder plus HTTP instrumentation.
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	subscriptions prometheus.Gauge
	authEvents    *prometheus.CounterVec
	docWrites     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolmaps_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schoolmaps_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schoolmaps_live_subscriptions",
			Help: "Currently open live subscriptions.",
		}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolmaps_auth_events_total",
			Help: "Authentication events by kind.",
		}, []string{"event"}),
		docWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolmaps_document_writes_total",
			Help: "Committed document writes by collection kind.",
		}, []string{"collection"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.subscriptions,
		c.authEvents,
		c.docWrites,
	)

	return c
}

// RecordAuthEvent counts one authentication event (register, login, logout, ...).
func (c *Collector) RecordAuthEvent(event string) {
	c.authEvents.WithLabelValues(event).Inc()
}

// RecordDocumentWrites counts committed writes to a collection kind.
func (c *Collector) RecordDocumentWrites(collection string, count int) {
	c.docWrites.WithLabelValues(collection).Add(float64(count))
}

func (c *Collector) SubscriptionOpened() { c.subscriptions.Inc() }

func (c *Collector) SubscriptionClosed() { c.subscriptions.Dec() }

// Middleware records request count and latency labelled with the chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		c.httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that drops everything.
type Nop struct{}

func (Nop) RecordAuthEvent(string)           {}
func (Nop) RecordDocumentWrites(string, int) {}
func (Nop) SubscriptionOpened()              {}
func (Nop) SubscriptionClosed()              {}
