package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	tierLabel1 = "tier1"
	tierLabel3 = "tier3"
)

// Eviction reasons reported on CacheEvictions.
const (
	evictReasonBudget  = "budget"
	evictReasonCorrupt = "corrupt"
	evictReasonManual  = "manual"
)

var (
	// CacheHits tracks cache hits by tier
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"}, // "tier1", "tier3"
	)

	// CacheMisses tracks cache misses by tier
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_misses_total",
			Help: "Total number of cache misses by tier",
		},
		[]string{"tier"},
	)

	// Syntheses tracks synthesizer calls by result
	Syntheses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_synthesis_total",
			Help: "Total number of synthesizer calls by result",
		},
		[]string{"result"}, // "success", "error"
	)

	// SynthesisDuration tracks synthesizer latency
	SynthesisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tiercache_synthesis_duration_seconds",
			Help:    "Synthesizer call duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// Promotions tracks Tier-3 promotion attempts by result
	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_promotions_total",
			Help: "Total number of Tier-3 promotion attempts by result",
		},
		[]string{"result"}, // "promoted", "present", "too_large", "error"
	)

	// CacheEvictions tracks Tier-3 evictions by reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiercache_evictions_total",
			Help: "Total number of Tier-3 evictions by reason",
		},
		[]string{"reason"}, // "budget", "corrupt", "manual"
	)

	// CacheSize tracks encoded bytes held by each tier
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiercache_size_bytes",
			Help: "Current encoded size of each cache tier in bytes",
		},
		[]string{"tier"},
	)

	// CacheEntries tracks the number of entries held by each tier
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiercache_entries",
			Help: "Current number of entries in each cache tier",
		},
		[]string{"tier"},
	)
)
