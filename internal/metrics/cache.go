package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache Prometheus metrics.
var (
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups per tier",
		},
		[]string{"tier", "result"}, // tier: l1/l2/l3; result: hit/miss/error
	)

	CacheStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "cache_store_errors_total",
			Help:      "Cache tier storage failures absorbed as misses or no-ops",
		},
		[]string{"tier", "op"},
	)

	CacheSimilarity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "staydex",
			Name:      "cache_vector_best_similarity",
			Help:      "Best cosine similarity found per L3 lookup",
			Buckets:   []float64{0.5, 0.8, 0.9, 0.93, 0.95, 0.97, 0.99, 1},
		},
	)

	CacheSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "cache_swept_rows_total",
			Help:      "Expired rows removed by the periodic sweep",
		},
		[]string{"table"},
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staydex",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions",
		},
		[]string{"result"}, // allowed / denied
	)

	RateLimitTrackedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "staydex",
			Name:      "rate_limit_tracked_clients",
			Help:      "Clients with an open rate limit window in memory",
		},
	)
)

var cacheMetricsRegistered bool

// RegisterCacheMetrics registers cache and rate-limit metrics. Must be called once from main.
func RegisterCacheMetrics() {
	if cacheMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(CacheStoreErrorsTotal)
	prometheus.MustRegister(CacheSimilarity)
	prometheus.MustRegister(CacheSweptTotal)
	prometheus.MustRegister(RateLimitDecisionsTotal)
	prometheus.MustRegister(RateLimitTrackedClients)
	cacheMetricsRegistered = true
}
