package metrics

import "github.com/prometheus/client_golang/prometheus"

// Generative fallback and pipeline Prometheus metrics.
var (
	GenerativeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "generative_requests_total",
			Help:      "Generative provider calls",
		},
		[]string{"mode", "status"},
	)

	GenerativeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staydex",
			Name:      "generative_request_duration_seconds",
			Help:      "Generative provider call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"mode"},
	)

	GenerativeRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "generative_retries_total",
			Help:      "Retries after retryable provider failures",
		},
		[]string{"mode"},
	)

	GenerativeParseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "generative_parse_failures_total",
			Help:      "Responses that could not be parsed as JSON",
		},
		[]string{"mode"},
	)

	PipelineResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "pipeline_resolutions_total",
			Help:      "Search resolutions by outcome",
		},
		[]string{"outcome"}, // l1 / l2 / l3 / analysis / open_web / timeout / rate_limited / error
	)

	PipelineResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "staydex",
			Name:      "pipeline_resolution_duration_seconds",
			Help:      "End-to-end resolution time",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60, 90},
		},
	)
)

var generativeMetricsRegistered bool

// RegisterGenerativeMetrics registers generative and pipeline metrics. Must be called once from main.
func RegisterGenerativeMetrics() {
	if generativeMetricsRegistered {
		return
	}
	prometheus.MustRegister(GenerativeRequestsTotal)
	prometheus.MustRegister(GenerativeRequestDuration)
	prometheus.MustRegister(GenerativeRetriesTotal)
	prometheus.MustRegister(GenerativeParseFailuresTotal)
	prometheus.MustRegister(PipelineResolutionsTotal)
	prometheus.MustRegister(PipelineResolutionDuration)
	generativeMetricsRegistered = true
}
