// Package warmup drives batches of entity keys through the cache in parallel,
// pre-heating popularity counters and Tier-3 before traffic arrives.
package warmup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/tiercache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var warmupKeysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tiercache_warmup_keys_total",
	Help: "Total number of keys processed by warmup by result",
}, []string{"result"}) // "tier1", "tier3", "synthesized", "error"

// Config holds warmer configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel lookups
	MaxConcurrency int
	// Timeout per key lookup
	Timeout time.Duration
	// Passes is how many times each key is requested (use the promotion
	// threshold to have every key promoted)
	Passes int
}

// DefaultConfig returns a conservative warmer configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        10 * time.Second,
		Passes:         1,
	}
}

// Getter is the part of cache.Manager the warmer needs
type Getter[A any] interface {
	Get(ctx context.Context, entityKey, detailLevel string) (A, cache.Source, error)
}

// Result summarizes one warmup run
type Result struct {
	Sources  map[cache.Source]int
	Failed   int
	Duration time.Duration
}

// Warmer requests keys through a Getter with a bounded worker pool
type Warmer[A any] struct {
	getter Getter[A]
	config Config
}

// NewWarmer creates a new warmer
func NewWarmer[A any](getter Getter[A], config Config) *Warmer[A] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Passes <= 0 {
		config.Passes = 1
	}

	return &Warmer[A]{
		getter: getter,
		config: config,
	}
}

type outcome struct {
	key    string
	source cache.Source
	err    error
}

// Warm requests every key at level, Passes times. Individual failures are
// counted and the first one is returned alongside the full result.
func (w *Warmer[A]) Warm(ctx context.Context, keys []string, level string) (Result, error) {
	start := time.Now()
	result := Result{Sources: make(map[cache.Source]int)}

	if len(keys) == 0 {
		return result, nil
	}

	log.Info().
		Int("keys", len(keys)).
		Int("passes", w.config.Passes).
		Str("level", level).
		Msg("Starting cache warmup")

	var firstErr error
	for pass := 0; pass < w.config.Passes; pass++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("warmup cancelled: %w", err)
		}

		queue := make(chan string, len(keys))
		for _, k := range keys {
			queue <- k
		}
		close(queue)

		outcomes := make(chan outcome, w.config.MaxConcurrency)

		var wg sync.WaitGroup
		for i := 0; i < w.config.MaxConcurrency; i++ {
			wg.Add(1)
			go w.worker(ctx, level, queue, outcomes, &wg, i)
		}

		go func() {
			wg.Wait()
			close(outcomes)
		}()

		for o := range outcomes {
			if o.err != nil {
				result.Failed++
				warmupKeysTotal.WithLabelValues("error").Inc()
				if firstErr == nil {
					firstErr = fmt.Errorf("warm %q: %w", o.key, o.err)
				}
				continue
			}
			result.Sources[o.source]++
			warmupKeysTotal.WithLabelValues(string(o.source)).Inc()
		}
	}

	result.Duration = time.Since(start)

	log.Info().
		Int("keys", len(keys)).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Warmup complete")

	return result, firstErr
}

// worker processes keys from the queue
func (w *Warmer[A]) worker(ctx context.Context, level string, queue <-chan string, outcomes chan<- outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for key := range queue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("keys_processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		keyCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
		_, source, err := w.getter.Get(keyCtx, key, level)
		cancel()

		outcomes <- outcome{key: key, source: source, err: err}
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("keys_processed", processed).
			Msg("Worker completed")
	}
}
