// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/grapher/pkg/errors"
	"github.com/matzehuels/grapher/pkg/observability"
)

// Hooks records render, cache and server events as Prometheus metrics.
type Hooks struct {
	rendersTotal    *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	renderBytes     *prometheus.HistogramVec
	rendersInFlight prometheus.Gauge
	cacheEvents     *prometheus.CounterVec
	cacheBytes      prometheus.Counter
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grapher_renders_total",
			Help: "Renders that reached the graph engine, by outcome code.",
		}, []string{"layout", "format", "code"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grapher_render_duration_seconds",
			Help:    "Time spent in the graph engine per render.",
			Buckets: prometheus.DefBuckets,
		}, []string{"layout", "format"}),
		renderBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grapher_render_output_bytes",
			Help:    "Size of rendered artifacts.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		rendersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grapher_renders_in_flight",
			Help: "Renders currently running.",
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grapher_cache_events_total",
			Help: "Cache lookups and writes, by key type and event.",
		}, []string{"key_type", "event"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grapher_cache_written_bytes_total",
			Help: "Bytes written to the artifact cache.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grapher_http_requests_total",
			Help: "HTTP requests handled, by route and status code.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grapher_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		h.rendersTotal, h.renderDuration, h.renderBytes, h.rendersInFlight,
		h.cacheEvents, h.cacheBytes,
		h.requestsTotal, h.requestDuration,
	)
	return h
}

// Register creates the metrics on reg and installs them as the global hooks.
func Register(reg prometheus.Registerer) *Hooks {
	h := New(reg)
	observability.SetRenderHooks(h)
	observability.SetCacheHooks(h)
	observability.SetServerHooks(h)
	return h
}

func (h *Hooks) OnRenderStart(ctx context.Context, layout, format string, inputBytes int) {
	h.rendersInFlight.Inc()
}

func (h *Hooks) OnRenderComplete(ctx context.Context, layout, format string, outputBytes int, duration time.Duration, err error) {
	h.rendersInFlight.Dec()
	code := "OK"
	if err != nil {
		code = string(errors.GetCode(err))
		if code == "" {
			code = string(errors.ErrCodeInternal)
		}
	}
	h.rendersTotal.WithLabelValues(layout, format, code).Inc()
	h.renderDuration.WithLabelValues(layout, format).Observe(duration.Seconds())
	if err == nil {
		h.renderBytes.WithLabelValues(format).Observe(float64(outputBytes))
	}
}

func (h *Hooks) OnCacheHit(ctx context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (h *Hooks) OnCacheMiss(ctx context.Context, keyType string) {
	h.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (h *Hooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	h.cacheEvents.WithLabelValues(keyType, "set").Inc()
	h.cacheBytes.Add(float64(size))
}

func (h *Hooks) OnRequest(ctx context.Context, method, route string) {}

func (h *Hooks) OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	h.requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	h.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

var (
	_ observability.RenderHooks = (*Hooks)(nil)
	_ observability.CacheHooks  = (*Hooks)(nil)
	_ observability.ServerHooks = (*Hooks)(nil)
)
