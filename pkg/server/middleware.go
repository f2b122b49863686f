package server

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MetricsConfig configures the request metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "strata").
	Namespace string

	// Buckets are the histogram buckets for request duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	Registry prometheus.Registerer
}

// MetricsOption configures the request metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(ns string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = ns }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(reg prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = reg }
}

type requestMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	globalRequestMetrics *requestMetrics
	requestMetricsOnce   sync.Once
)

func initRequestMetrics(cfg MetricsConfig) *requestMetrics {
	factory := promauto.With(cfg.Registry)
	return &requestMetrics{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: "http",
			Name: "requests_total",
			Help: "HTTP requests served",
		}, []string{"path", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: "http",
			Name:    "request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: cfg.Buckets,
		}, []string{"path"}),
	}
}

// RequestMetrics returns middleware that records request counts and
// latencies. Metrics register once per process regardless of how many
// handlers wrap it.
func RequestMetrics(opts ...MetricsOption) func(http.Handler) http.Handler {
	cfg := MetricsConfig{
		Namespace: "strata",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	requestMetricsOnce.Do(func() {
		globalRequestMetrics = initRequestMetrics(cfg)
	})
	m := globalRequestMetrics

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.total.WithLabelValues(r.URL.Path, http.StatusText(sw.status)).Inc()
			m.duration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

// Tracing returns middleware that opens an OpenTelemetry span per
// request using the global tracer provider.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
				),
			)
			defer span.End()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack passes through so WebSocket upgrades work behind the
// middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// Flush passes through so streaming responses keep flushing behind the
// middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
