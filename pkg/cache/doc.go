// Package cache provides a multi-tier, popularity-aware artifact cache.
//
// The cache manager serves lookups for artifacts that are expensive to compute:
//
// - Tier-1: preloaded summaries, immutable between reloads, lock-free reads
// - Tier-2: the synthesizer, called on every miss and never cached by itself
// - Tier-3: byte-budgeted store of promoted detailed artifacts
// - Popularity tracking that promotes artifacts once a threshold is reached
// - Prometheus metrics and a Stats snapshot for observability
// - Deterministic 128-bit fingerprints as the only lookup key
//
// # Basic Usage
//
//	synth := cache.SynthesizerFunc[Profile](func(ctx context.Context, key string) (Profile, error) {
//		return buildProfile(ctx, key)
//	})
//
//	manager, err := cache.NewManager(cache.DefaultConfig(), synth, cache.JSONCodec[Profile]{}, logger)
//	if err != nil {
//		return err
//	}
//
//	// Build Tier-1 from a loader
//	if _, err := manager.Reload(ctx, loader); err != nil && !errors.Is(err, cache.ErrLoadBudgetExceeded) {
//		return err
//	}
//
//	profile, source, err := manager.Get(ctx, "alice", cache.LevelDetailed)
//	if errors.Is(err, cache.ErrSynthesisFailed) {
//		// The only error a lookup surfaces
//	}
//
// # Request Flow
//
// Basic requests probe Tier-1, detailed requests probe Tier-3. Any miss calls
// the synthesizer. A successful detailed synthesis increments the popularity
// counter for its fingerprint; once the counter reaches PromotionThreshold the
// artifact is encoded and put into Tier-3. Promotion is best-effort: an
// artifact larger than the Tier-3 budget is served uncached.
//
// # Eviction
//
// Tier-3 evicts in insertion order by default: the oldest promoted entry
// goes first and reads never reorder entries. EvictionLRU is available as an
// opt-in policy in which reads refresh recency.
//
// # Compression
//
// JSONCodec stores artifacts as JSON. NewZstdCodec wraps any codec with zstd
// compression so more artifacts fit each byte budget.
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - tiercache_hits_total{tier} - Cache hits by tier
//   - tiercache_misses_total{tier} - Cache misses by tier
//   - tiercache_synthesis_total{result} - Synthesizer calls
//   - tiercache_synthesis_duration_seconds - Synthesizer latency
//   - tiercache_promotions_total{result} - Tier-3 promotion attempts
//   - tiercache_evictions_total{reason} - Tier-3 evictions
//   - tiercache_size_bytes{tier} - Encoded bytes per tier
//   - tiercache_entries{tier} - Entries per tier
package cache
