package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "zuulview"

var (
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total upstream fetches, labeled by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)

	FetchLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_latency_seconds",
			Help:      "Latency of upstream fetches (seconds).",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"resource"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Fetches answered from the build-info store without network access.",
		},
		[]string{"resource"},
	)

	OutputFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_fallbacks_total",
			Help:      "Log-output fetches that fell back to the uncompressed document.",
		},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the per-client rate limit.",
		},
		[]string{"scope", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		FetchesTotal,
		FetchLatencySeconds,
		CacheHitsTotal,
		OutputFallbacksTotal,
		RateLimitHitsTotal,
	)
}
