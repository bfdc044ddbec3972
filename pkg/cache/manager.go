package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Manager serves artifact lookups across the summary tier, the promotion
// tier and the synthesizer.
type Manager[A any] struct {
	config     Config
	codec      Codec[A]
	synth      Synthesizer[A]
	tier1      *SummaryStore[A]
	tier3      *PromotionStore
	popularity *Tracker
	stats      statsAggregator
	flight     singleflight.Group
	logger     zerolog.Logger
}

// NewManager creates a cache manager. Tier-1 starts empty until Reload.
func NewManager[A any](cfg Config, synth Synthesizer[A], codec Codec[A], logger zerolog.Logger) (*Manager[A], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("codec is required")
	}

	cfg.Eviction = cfg.evictionPolicy()

	return &Manager[A]{
		config:     cfg,
		codec:      codec,
		synth:      synth,
		tier1:      NewSummaryStore(codec, cfg.Tier1MaxBytes, logger),
		tier3:      NewPromotionStore(cfg.Tier3MaxBytes, cfg.Eviction, logger),
		popularity: NewTracker(),
		logger:     logger,
	}, nil
}

// Get returns the artifact for entityKey at detailLevel along with where it
// was found. Only synthesis failures are returned as errors (wrapping
// ErrSynthesisFailed); storage problems degrade to synthesizing without caching.
func (m *Manager[A]) Get(ctx context.Context, entityKey, detailLevel string) (A, Source, error) {
	var zero A

	if !ValidLevel(detailLevel) {
		return zero, "", fmt.Errorf("%w: %q", ErrInvalidDetailLevel, detailLevel)
	}

	fingerprint := Fingerprint(entityKey, detailLevel)

	switch detailLevel {
	case LevelBasic:
		if a, ok := m.checkTier1(fingerprint); ok {
			return a, SourceTier1, nil
		}
	case LevelDetailed:
		if a, ok := m.checkTier3(fingerprint); ok {
			return a, SourceTier3, nil
		}
	}

	artifact, err := m.synthesize(ctx, fingerprint, entityKey)
	if err != nil {
		return zero, "", err
	}

	if detailLevel == LevelDetailed {
		count := m.popularity.RecordAccess(fingerprint)
		if m.popularity.ShouldPromote(fingerprint, m.config.PromotionThreshold) {
			m.promote(fingerprint, entityKey, artifact, count)
		}
	}

	return artifact, SourceSynthesized, nil
}

func (m *Manager[A]) checkTier1(fingerprint string) (A, bool) {
	a, found, err := m.tier1.Lookup(fingerprint)
	if err != nil {
		m.stats.decodeFailure()
		m.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Tier1 entry corrupt, treating as miss")
	}
	if !found {
		m.stats.tier1Miss()
		return a, false
	}

	m.stats.tier1Hit()
	m.logger.Debug().Str("fingerprint", fingerprint).Msg("Tier1 hit")
	return a, true
}

func (m *Manager[A]) checkTier3(fingerprint string) (A, bool) {
	var zero A

	data, found := m.tier3.Get(fingerprint)
	if !found {
		m.stats.tier3Miss()
		return zero, false
	}

	a, err := m.codec.Decode(data)
	if err != nil {
		// Drop the entry so it does not fail again on every request.
		m.tier3.evictIf(fingerprint, data, evictReasonCorrupt)
		m.stats.decodeFailure()
		m.stats.tier3Miss()
		m.logger.Warn().
			Err(err).
			Str("fingerprint", fingerprint).
			Msg("Tier3 entry corrupt, evicted and treating as miss")
		return zero, false
	}

	m.stats.tier3Hit()
	m.logger.Debug().Str("fingerprint", fingerprint).Msg("Tier3 hit")
	return a, true
}

// synthesize calls the synthesizer, sharing one call per fingerprint
// between concurrent requests when CoalesceSynthesis is enabled.
func (m *Manager[A]) synthesize(ctx context.Context, fingerprint, entityKey string) (A, error) {
	if !m.config.CoalesceSynthesis {
		return m.callSynthesizer(ctx, entityKey)
	}

	// The shared call outlives any single waiter, so it must not inherit
	// one caller's cancellation.
	ch := m.flight.DoChan(fingerprint, func() (interface{}, error) {
		return m.callSynthesizer(context.WithoutCancel(ctx), entityKey)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero A
			return zero, res.Err
		}
		return res.Val.(A), nil
	case <-ctx.Done():
		var zero A
		return zero, &SynthesisError{Entity: entityKey, Err: ctx.Err()}
	}
}

func (m *Manager[A]) callSynthesizer(ctx context.Context, entityKey string) (A, error) {
	start := time.Now()
	a, err := m.synth.Synthesize(ctx, entityKey)
	SynthesisDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		m.stats.synthesis(false)
		m.logger.Debug().Err(err).Str("entity", entityKey).Msg("Synthesis failed")

		var synthErr *SynthesisError
		if errors.As(err, &synthErr) {
			return a, err
		}
		return a, &SynthesisError{Entity: entityKey, Err: err}
	}

	m.stats.synthesis(true)
	return a, nil
}

// promote is best-effort: failures are logged and counted, never returned.
func (m *Manager[A]) promote(fingerprint, entityKey string, artifact A, count int) {
	data, err := m.codec.Encode(artifact)
	if err != nil {
		m.stats.promotion("error")
		m.logger.Warn().Err(err).Str("entity", entityKey).Msg("Promotion skipped, encode failed")
		return
	}

	inserted, err := m.tier3.put(fingerprint, data)
	switch {
	case errors.Is(err, ErrEntryTooLarge):
		m.stats.promotion("too_large")
		m.logger.Warn().
			Err(err).
			Str("entity", entityKey).
			Int("size_bytes", len(data)).
			Msg("Promotion skipped, artifact too large")
	case err != nil:
		m.stats.promotion("error")
		m.logger.Warn().Err(err).Str("entity", entityKey).Msg("Promotion failed")
	case !inserted:
		m.stats.promotion("present")
	default:
		m.stats.promotion("promoted")
		m.logger.Debug().
			Str("entity", entityKey).
			Str("fingerprint", fingerprint).
			Int("count", count).
			Int("threshold", m.config.PromotionThreshold).
			Int("size_bytes", len(data)).
			Msg("Promoted artifact to tier3")
	}
}

// Reload rebuilds Tier-1 from loader. Readers keep seeing the previous
// contents until the new store is complete. When the byte budget stops
// the load early the partial store is installed and an error wrapping
// ErrLoadBudgetExceeded is returned with the loaded count.
func (m *Manager[A]) Reload(ctx context.Context, loader Loader[A]) (int, error) {
	entries, err := loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load summaries: %w", err)
	}

	summaries := make([]Summary[A], 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, Summary[A]{
			Fingerprint: Fingerprint(e.Entity, LevelBasic),
			Artifact:    e.Artifact,
		})
	}

	loaded, err := m.tier1.Load(summaries)
	_, bytes := m.tier1.Size()

	if errors.Is(err, ErrLoadBudgetExceeded) {
		m.logger.Warn().
			Err(err).
			Int("loaded", loaded).
			Int("offered", len(entries)).
			Int64("max_bytes", m.config.Tier1MaxBytes).
			Msg("Tier1 load stopped at byte budget")
		return loaded, err
	}

	m.logger.Info().
		Int("loaded", loaded).
		Int64("current_bytes", bytes).
		Msg("Tier1 loaded")
	return loaded, err
}

// Evict removes the promoted detailed artifact for entityKey.
func (m *Manager[A]) Evict(entityKey string) bool {
	return m.tier3.Evict(Fingerprint(entityKey, LevelDetailed))
}

// Popularity returns how many detailed syntheses entityKey has seen.
func (m *Manager[A]) Popularity(entityKey string) int {
	return m.popularity.Count(Fingerprint(entityKey, LevelDetailed))
}

// Stats returns a snapshot of cache activity. It never blocks requests.
func (m *Manager[A]) Stats() Stats {
	t1Entries, t1Bytes := m.tier1.Size()
	t3Entries, t3Bytes := m.tier3.Size()

	tier3 := tierStats(m.stats.tier3Hits.Load(), m.stats.tier3Misses.Load(), t3Entries, t3Bytes, m.tier3.MaxBytes())
	tier3.Evictions = m.tier3.Evictions()

	return Stats{
		Tier1: tierStats(m.stats.tier1Hits.Load(), m.stats.tier1Misses.Load(), t1Entries, t1Bytes, m.tier1.MaxBytes()),
		Tier3: tier3,
		Synthesis: SynthesisStats{
			Calls:             m.stats.synthCalls.Load(),
			Failures:          m.stats.synthFailures.Load(),
			Promotions:        m.stats.promotions.Load(),
			PromotionFailures: m.stats.promotionFailures.Load(),
			DecodeFailures:    m.stats.decodeFailures.Load(),
		},
		TrackedKeys: m.popularity.Len(),
	}
}

// Config returns the validated configuration.
func (m *Manager[A]) Config() Config {
	return m.config
}
