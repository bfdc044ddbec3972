package cache

import (
	"sync/atomic"
)

// TierStats is a point-in-time view of one storage tier.
type TierStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Entries   int    `json:"entries"`
	Bytes     int64  `json:"bytes"`
	MaxBytes  int64  `json:"max_bytes"`
	Evictions uint64 `json:"evictions"`

	// Utilization is Bytes/MaxBytes as a percentage
	Utilization float64 `json:"utilization_pct"`
}

// HitRatio returns Hits / (Hits + Misses), or 0 when the tier was never probed.
func (t TierStats) HitRatio() float64 {
	total := t.Hits + t.Misses
	if total == 0 {
		return 0
	}
	return float64(t.Hits) / float64(total)
}

// SynthesisStats summarizes the synthesis and promotion path.
type SynthesisStats struct {
	Calls             uint64 `json:"calls"`
	Failures          uint64 `json:"failures"`
	Promotions        uint64 `json:"promotions"`
	PromotionFailures uint64 `json:"promotion_failures"`
	DecodeFailures    uint64 `json:"decode_failures"`
}

// Stats is a read-only snapshot of cache activity and usage.
// It is derived from live counters and never fed back into the cache.
type Stats struct {
	Tier1       TierStats      `json:"tier1"`
	Tier3       TierStats      `json:"tier3"`
	Synthesis   SynthesisStats `json:"synthesis"`
	TrackedKeys int            `json:"tracked_keys"`
}

// statsAggregator holds the request counters reported by the Manager.
// All fields are atomics so recording never blocks a request.
type statsAggregator struct {
	tier1Hits         atomic.Uint64
	tier1Misses       atomic.Uint64
	tier3Hits         atomic.Uint64
	tier3Misses       atomic.Uint64
	synthCalls        atomic.Uint64
	synthFailures     atomic.Uint64
	promotions        atomic.Uint64
	promotionFailures atomic.Uint64
	decodeFailures    atomic.Uint64
}

func (s *statsAggregator) tier1Hit() {
	s.tier1Hits.Add(1)
	CacheHits.WithLabelValues(tierLabel1).Inc()
}

func (s *statsAggregator) tier1Miss() {
	s.tier1Misses.Add(1)
	CacheMisses.WithLabelValues(tierLabel1).Inc()
}

func (s *statsAggregator) tier3Hit() {
	s.tier3Hits.Add(1)
	CacheHits.WithLabelValues(tierLabel3).Inc()
}

func (s *statsAggregator) tier3Miss() {
	s.tier3Misses.Add(1)
	CacheMisses.WithLabelValues(tierLabel3).Inc()
}

func (s *statsAggregator) synthesis(ok bool) {
	s.synthCalls.Add(1)
	if ok {
		Syntheses.WithLabelValues("success").Inc()
		return
	}
	s.synthFailures.Add(1)
	Syntheses.WithLabelValues("error").Inc()
}

func (s *statsAggregator) promotion(result string) {
	switch result {
	case "promoted":
		s.promotions.Add(1)
	case "too_large", "error":
		s.promotionFailures.Add(1)
	}
	Promotions.WithLabelValues(result).Inc()
}

func (s *statsAggregator) decodeFailure() {
	s.decodeFailures.Add(1)
}

// tierStats builds the view for a tier from its counters and current size.
func tierStats(hits, misses uint64, entries int, bytes, maxBytes int64) TierStats {
	ts := TierStats{
		Hits:     hits,
		Misses:   misses,
		Entries:  entries,
		Bytes:    bytes,
		MaxBytes: maxBytes,
	}
	if maxBytes > 0 {
		ts.Utilization = float64(bytes) / float64(maxBytes) * 100
	}
	return ts
}
