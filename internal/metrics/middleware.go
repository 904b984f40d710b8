package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staydex",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds, excluding event streams",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpStreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "staydex",
			Name:      "http_streams_active",
			Help:      "Server-sent event streams currently open",
		},
	)

	httpStreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "staydex",
			Name:      "http_stream_duration_seconds",
			Help:      "Lifetime of server-sent event streams in seconds",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		},
	)
)

var httpMetricsRegistered bool

// RegisterHTTPMetrics registers request and stream metrics. Must be called once from main.
func RegisterHTTPMetrics() {
	if httpMetricsRegistered {
		return
	}
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpStreamsActive)
	prometheus.MustRegister(httpStreamDuration)
	httpMetricsRegistered = true
}

// Middleware records HTTP request duration and count. Responses sent as
// text/event-stream are timed as streams and tracked while open.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			// Route pattern is only known after routing.
			path := normalizePath(chi.RouteContext(r.Context()).RoutePattern())
			duration := time.Since(start).Seconds()

			if ww.streaming {
				httpStreamsActive.Dec()
				httpStreamDuration.Observe(duration)
			} else {
				httpRequestDuration.WithLabelValues(r.Method, path, strconv.Itoa(ww.status)).Observe(duration)
			}
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.status)).Inc()
		})
	}
}

// normalizePath maps unmatched routes to a single label to keep cardinality bounded.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

// statusWriter captures the response status and whether the body is an event stream.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	streaming   bool
}

func (w *statusWriter) WriteHeader(status int) {
	w.markHeader(status)
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.markHeader(http.StatusOK)
	return w.ResponseWriter.Write(b) //nolint:wrapcheck // delegating to underlying ResponseWriter
}

// Flush forwards to the underlying writer so server-sent events are not buffered.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.markHeader(http.StatusOK)
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) markHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = status
	if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
		w.streaming = true
		httpStreamsActive.Inc()
	}
}
