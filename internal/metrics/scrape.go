package metrics

import "github.com/prometheus/client_golang/prometheus"

// Browser pool and scrape Prometheus metrics.
var (
	BrowserLaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "browser_launches_total",
			Help:      "Browser launch attempts",
		},
		[]string{"status"}, // success / error / rejected
	)

	BrowserRecyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "browser_recycles_total",
			Help:      "Browsers closed by the pool",
		},
		[]string{"reason"}, // uses / age / crash / shutdown
	)

	BrowserBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "staydex",
			Name:      "browser_breaker_state",
			Help:      "Launch circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	BrowserPagesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "staydex",
			Name:      "browser_pages_in_flight",
			Help:      "Pages currently open across the pool",
		},
	)

	ScrapeSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "scrape_source_results_total",
			Help:      "Scrape outcomes per source",
		},
		[]string{"source", "status"}, // success / empty / error
	)

	ScrapeSourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staydex",
			Name:      "scrape_source_duration_seconds",
			Help:      "Time to navigate and extract one source",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"source"},
	)
)

var scrapeMetricsRegistered bool

// RegisterScrapeMetrics registers browser and scrape metrics. Must be called once from main.
func RegisterScrapeMetrics() {
	if scrapeMetricsRegistered {
		return
	}
	prometheus.MustRegister(BrowserLaunchesTotal)
	prometheus.MustRegister(BrowserRecyclesTotal)
	prometheus.MustRegister(BrowserBreakerState)
	prometheus.MustRegister(BrowserPagesInFlight)
	prometheus.MustRegister(ScrapeSourceTotal)
	prometheus.MustRegister(ScrapeSourceDuration)
	scrapeMetricsRegistered = true
}
