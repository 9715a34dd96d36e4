// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tably_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tably_pipeline_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
		},
		[]string{"stage"}, // rank, rerank
	)

	// RerankOutcomes distinguishes failure classes internally even though
	// the caller-visible outcome of every failure is the same deterministic
	// fallback.
	RerankOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tably_rerank_outcomes_total",
			Help: "Re-ranker outcomes by class (success, cache_hit, timeout, network, malformed, empty, canceled)",
		},
		[]string{"outcome"},
	)

	LLMCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tably_llm_cache_hits_total",
			Help: "LLM response cache hits",
		},
	)

	LLMCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tably_llm_cache_misses_total",
			Help: "LLM response cache misses, including cache errors treated as misses",
		},
	)

	TableSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tably_restaurant_table_size",
			Help: "Number of restaurants in the loaded table",
		},
	)
)
