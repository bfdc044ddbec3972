package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/tiercache/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg Config, synth *testutil.MockSynthesizer) *Manager[testutil.Profile] {
	t.Helper()

	m, err := NewManager[testutil.Profile](cfg, synth, testutil.RawCodec{}, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func testConfig(tier3MaxBytes int64, threshold int) Config {
	cfg := DefaultConfig()
	cfg.Tier3MaxBytes = tier3MaxBytes
	cfg.PromotionThreshold = threshold
	return cfg
}

func staticLoader(entries ...Entry[testutil.Profile]) Loader[testutil.Profile] {
	return LoaderFunc[testutil.Profile](func(ctx context.Context) ([]Entry[testutil.Profile], error) {
		return entries, nil
	})
}

func TestNewManager_Validation(t *testing.T) {
	synth := testutil.NewMockSynthesizer()

	_, err := NewManager[testutil.Profile](Config{}, synth, testutil.RawCodec{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager[testutil.Profile](DefaultConfig(), nil, testutil.RawCodec{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewManager[testutil.Profile](DefaultConfig(), synth, nil, zerolog.Nop())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Eviction = ""
	m, err := NewManager[testutil.Profile](cfg, synth, testutil.RawCodec{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, EvictionInsertion, m.Config().Eviction)
}

func TestManager_Get_InvalidLevel(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	m := newTestManager(t, DefaultConfig(), synth)

	_, _, err := m.Get(context.Background(), "alice", "full")
	require.ErrorIs(t, err, ErrInvalidDetailLevel)
	assert.Zero(t, synth.TotalCalls())
}

func TestManager_Get_BasicFromTier1(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	m := newTestManager(t, DefaultConfig(), synth)
	ctx := context.Background()

	loaded, err := m.Reload(ctx, staticLoader(
		Entry[testutil.Profile]{Entity: "alice", Artifact: testutil.Profile{Entity: "alice", Level: LevelBasic, Payload: "summary"}},
	))
	require.NoError(t, err)
	require.Equal(t, 1, loaded)

	p, source, err := m.Get(ctx, "alice", LevelBasic)
	require.NoError(t, err)
	assert.Equal(t, SourceTier1, source)
	assert.Equal(t, "summary", p.Payload)
	assert.Zero(t, synth.TotalCalls())

	// Detailed requests never read Tier-1.
	_, source, err = m.Get(ctx, "alice", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, source)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Tier1.Hits)
	assert.Zero(t, stats.Tier1.Misses)
}

func TestManager_Get_BasicMissSynthesizes(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	m := newTestManager(t, testConfig(1<<20, 1), synth)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, source, err := m.Get(ctx, "bob", LevelBasic)
		require.NoError(t, err)
		assert.Equal(t, SourceSynthesized, source)
	}

	assert.Equal(t, 3, synth.Calls("bob"))
	assert.Zero(t, m.Popularity("bob"), "basic lookups must not count toward promotion")

	count, _ := m.tier3.Size()
	assert.Zero(t, count, "basic artifacts are never promoted")

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.Tier1.Misses)
}

func TestManager_PromotionThreshold(t *testing.T) {
	const threshold = 3
	synth := testutil.NewMockSynthesizer()
	m := newTestManager(t, testConfig(1<<20, threshold), synth)
	ctx := context.Background()
	fp := Fingerprint("carol", LevelDetailed)

	for i := 1; i < threshold; i++ {
		_, source, err := m.Get(ctx, "carol", LevelDetailed)
		require.NoError(t, err)
		assert.Equal(t, SourceSynthesized, source)
		assert.False(t, m.tier3.Contains(fp), "promoted after %d accesses", i)
	}

	_, source, err := m.Get(ctx, "carol", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, source)
	assert.True(t, m.tier3.Contains(fp), "not promoted on access %d", threshold)

	p, source, err := m.Get(ctx, "carol", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceTier3, source)
	assert.Equal(t, "carol", p.Entity)

	assert.Equal(t, threshold, synth.Calls("carol"))
	assert.Equal(t, threshold, m.Popularity("carol"), "tier3 hits do not count")

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Tier3.Hits)
	assert.Equal(t, uint64(threshold), stats.Tier3.Misses)
	assert.Equal(t, uint64(1), stats.Synthesis.Promotions)
}

func TestManager_ScenarioEvictsOldest(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	for _, k := range []string{"A", "B", "C"} {
		synth.SizeFor(k, 400-testutil.EncodedSize(k, 0))
	}
	m := newTestManager(t, testConfig(1000, 1), synth)
	ctx := context.Background()

	for _, k := range []string{"A", "B", "C"} {
		_, _, err := m.Get(ctx, k, LevelDetailed)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		Fingerprint("B", LevelDetailed),
		Fingerprint("C", LevelDetailed),
	}, m.tier3.Keys())

	stats := m.Stats()
	assert.Equal(t, 2, stats.Tier3.Entries)
	assert.Equal(t, int64(800), stats.Tier3.Bytes)
	assert.InDelta(t, 80.0, stats.Tier3.Utilization, 0.001)
	assert.Equal(t, uint64(1), stats.Tier3.Evictions)

	_, source, err := m.Get(ctx, "A", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, source, "evicted key must miss")
}

func TestManager_OversizedArtifactServedUncached(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	synth.SizeFor("huge", 2000)
	m := newTestManager(t, testConfig(1000, 1), synth)
	ctx := context.Background()

	_, _, err := m.Get(ctx, "small", LevelDetailed)
	require.NoError(t, err)

	p, source, err := m.Get(ctx, "huge", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, source)
	assert.Len(t, p.Payload, 2000)

	assert.Equal(t, []string{Fingerprint("small", LevelDetailed)}, m.tier3.Keys(), "existing contents untouched")

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Synthesis.PromotionFailures)
}

func TestManager_SynthesisFailure(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	synth.FailFor("broken", nil)
	m := newTestManager(t, testConfig(1<<20, 1), synth)

	_, source, err := m.Get(context.Background(), "broken", LevelDetailed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, testutil.ErrMockFailure)
	assert.Empty(t, source)

	var synthErr *SynthesisError
	require.True(t, errors.As(err, &synthErr))
	assert.Equal(t, "broken", synthErr.Entity)

	assert.Zero(t, m.Popularity("broken"), "failed requests are not counted")
	assert.False(t, m.tier3.Contains(Fingerprint("broken", LevelDetailed)))

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Synthesis.Failures)
}

func TestManager_CorruptTier3EntryFallsThrough(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	m := newTestManager(t, testConfig(1<<20, 1), synth)
	ctx := context.Background()
	fp := Fingerprint("dave", LevelDetailed)

	require.NoError(t, m.tier3.Put(fp, []byte("corrupt bytes")))

	p, source, err := m.Get(ctx, "dave", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, source)
	assert.Equal(t, "dave", p.Entity)

	// The corrupt entry was replaced by a fresh promotion.
	_, source, err = m.Get(ctx, "dave", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceTier3, source)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Synthesis.DecodeFailures)
	assert.Equal(t, uint64(1), stats.Tier3.Evictions)
}

func TestManager_ContextCancellation(t *testing.T) {
	for _, coalesce := range []bool{false, true} {
		t.Run(fmt.Sprintf("coalesce=%v", coalesce), func(t *testing.T) {
			synth := testutil.NewMockSynthesizer()
			synth.Gate = make(chan struct{})
			defer close(synth.Gate)

			cfg := testConfig(1<<20, 1)
			cfg.CoalesceSynthesis = coalesce
			m := newTestManager(t, cfg, synth)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			_, _, err := m.Get(ctx, "slow", LevelDetailed)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSynthesisFailed)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestManager_CoalescedSynthesis(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	synth.Gate = make(chan struct{})

	cfg := testConfig(1<<20, 100)
	cfg.CoalesceSynthesis = true
	m := newTestManager(t, cfg, synth)

	const requests = 10
	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Get(context.Background(), "hot", LevelDetailed)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return synth.Calls("hot") == 1 }, time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(synth.Gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, synth.Calls("hot"))
	assert.Equal(t, requests, m.Popularity("hot"), "each request is counted once")
}

func TestManager_ConcurrentSynthesisWithoutCoalescing(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	synth.Delay = 5 * time.Millisecond
	m := newTestManager(t, testConfig(1<<20, 1000), synth)

	const requests = 8
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Get(context.Background(), "hot", LevelDetailed)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, requests, synth.Calls("hot"))
	assert.Equal(t, requests, m.Popularity("hot"))
}

func TestManager_ConcurrentBudgetInvariant(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	synth.PayloadSize = 90
	m := newTestManager(t, testConfig(1000, 2), synth)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				entity := fmt.Sprintf("k%d", (g*7+i)%30)
				_, _, err := m.Get(context.Background(), entity, LevelDetailed)
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	stats := m.Stats()
	assert.LessOrEqual(t, stats.Tier3.Bytes, int64(1000))
	assert.Equal(t, sumSizes(m.tier3), stats.Tier3.Bytes)
}

func TestManager_EvictAndPopularity(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	m := newTestManager(t, testConfig(1<<20, 1), synth)
	ctx := context.Background()

	_, _, err := m.Get(ctx, "erin", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Popularity("erin"))

	assert.True(t, m.Evict("erin"))
	assert.False(t, m.Evict("erin"))

	_, source, err := m.Get(ctx, "erin", LevelDetailed)
	require.NoError(t, err)
	assert.Equal(t, SourceSynthesized, source)
	assert.Equal(t, 2, m.Popularity("erin"))
}

func TestManager_Reload(t *testing.T) {
	synth := testutil.NewMockSynthesizer()
	ctx := context.Background()

	t.Run("budget exceeded keeps partial tier1", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tier1MaxBytes = int64(2 * testutil.EncodedSize("e0", 50))
		m := newTestManager(t, cfg, synth)

		var entries []Entry[testutil.Profile]
		for i := 0; i < 5; i++ {
			entity := fmt.Sprintf("e%d", i)
			entries = append(entries, Entry[testutil.Profile]{
				Entity:   entity,
				Artifact: testutil.Profile{Entity: entity, Payload: string(make([]byte, 50))},
			})
		}

		loaded, err := m.Reload(ctx, staticLoader(entries...))
		require.ErrorIs(t, err, ErrLoadBudgetExceeded)
		assert.Equal(t, 2, loaded)

		_, source, err := m.Get(ctx, "e1", LevelBasic)
		require.NoError(t, err)
		assert.Equal(t, SourceTier1, source)

		stats := m.Stats()
		assert.Equal(t, 2, stats.Tier1.Entries)
		assert.InDelta(t, 100.0, stats.Tier1.Utilization, 0.001)
	})

	t.Run("loader error leaves tier1 untouched", func(t *testing.T) {
		m := newTestManager(t, DefaultConfig(), synth)
		_, err := m.Reload(ctx, staticLoader(Entry[testutil.Profile]{Entity: "keep"}))
		require.NoError(t, err)

		failing := LoaderFunc[testutil.Profile](func(ctx context.Context) ([]Entry[testutil.Profile], error) {
			return nil, errors.New("source down")
		})
		_, err = m.Reload(ctx, failing)
		require.Error(t, err)

		_, source, err := m.Get(ctx, "keep", LevelBasic)
		require.NoError(t, err)
		assert.Equal(t, SourceTier1, source)
	})
}
