// Package metrics provides the Prometheus registry and HTTP handler for the
// tiered cache. All metrics are defined in their respective packages (cache,
// synth, warmup) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving all registered metrics.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	)
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - tiercache_hits_total{tier} (Counter): Hits by tier (tier1, tier3)
//   - tiercache_misses_total{tier} (Counter): Misses by tier
//   - tiercache_synthesis_total{result} (Counter): Synthesizer calls (success, error)
//   - tiercache_synthesis_duration_seconds (Histogram): Synthesizer latency
//   - tiercache_promotions_total{result} (Counter): Promotion attempts (promoted, present, too_large, error)
//   - tiercache_evictions_total{reason} (Counter): Tier-3 evictions (budget, corrupt, manual)
//   - tiercache_size_bytes{tier} (Gauge): Encoded bytes held per tier
//   - tiercache_entries{tier} (Gauge): Entries held per tier
//
// Retry Metrics (pkg/synth):
//   - tiercache_synthesis_retries_total (Counter): Retry attempts
//   - tiercache_synthesis_retry_backoff_seconds (Histogram): Backoff before retries
//   - tiercache_synthesis_retry_exhausted_total (Counter): Calls that exhausted retries
//
// Warmup Metrics (pkg/warmup):
//   - tiercache_warmup_keys_total{result} (Counter): Warmed keys by source or error
//
// Example Prometheus Queries:
//
//   # Tier-3 Hit Rate
//   rate(tiercache_hits_total{tier="tier3"}[5m]) /
//   (rate(tiercache_hits_total{tier="tier3"}[5m]) + rate(tiercache_misses_total{tier="tier3"}[5m]))
//
//   # Tier-3 Utilization
//   tiercache_size_bytes{tier="tier3"}
//
//   # Promotions rejected as too large
//   rate(tiercache_promotions_total{result="too_large"}[5m])
//
//   # P95 Synthesis Latency
//   histogram_quantile(0.95, rate(tiercache_synthesis_duration_seconds_bucket[5m]))
