package synth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/tiercache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	synthRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiercache_synthesis_retries_total",
		Help: "Total number of synthesis retry attempts",
	})

	synthRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiercache_synthesis_retry_backoff_seconds",
		Help:    "Backoff duration before synthesis retries",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	synthRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tiercache_synthesis_retry_exhausted_total",
		Help: "Total number of times synthesis retry attempts were exhausted",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial call).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retrying is a Synthesizer that retries transient failures.
type retrying[A any] struct {
	next   cache.Synthesizer[A]
	config RetryConfig
	logger zerolog.Logger
}

// WithRetry wraps next so transient errors are retried with exponential
// backoff and ±20% jitter. Other errors are returned immediately.
func WithRetry[A any](next cache.Synthesizer[A], config RetryConfig, logger zerolog.Logger) cache.Synthesizer[A] {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 1
	}
	return &retrying[A]{next: next, config: config, logger: logger}
}

// Synthesize implements cache.Synthesizer.
func (r *retrying[A]) Synthesize(ctx context.Context, entityKey string) (A, error) {
	var zero A
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		a, err := r.next.Synthesize(ctx, entityKey)
		if err == nil {
			if attempt > 1 {
				r.logger.Info().
					Str("entity", entityKey).
					Int("attempt", attempt).
					Msg("Synthesis succeeded after retry")
			}
			return a, nil
		}

		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}

		if attempt >= r.config.MaxAttempts {
			break
		}

		synthRetriesTotal.Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		synthRetryBackoffSeconds.Observe(jitter.Seconds())

		r.logger.Debug().
			Str("entity", entityKey).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying synthesis after backoff")

		select {
		case <-ctx.Done():
			r.logger.Warn().
				Str("entity", entityKey).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return zero, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * r.config.BackoffMultiplier)
		if backoff > r.config.MaxBackoff {
			backoff = r.config.MaxBackoff
		}
	}

	synthRetryExhaustedTotal.Inc()
	r.logger.Warn().
		Str("entity", entityKey).
		Int("max_attempts", r.config.MaxAttempts).
		Msg("Synthesis retry attempts exhausted")

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.config.MaxAttempts, lastErr)
}

// WithTimeout bounds every call to next by d. When only this deadline
// expired, and not the caller's context, the error is marked transient so
// an outer WithRetry tries again.
func WithTimeout[A any](next cache.Synthesizer[A], d time.Duration) cache.Synthesizer[A] {
	return cache.SynthesizerFunc[A](func(ctx context.Context, entityKey string) (A, error) {
		callCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		a, err := next.Synthesize(callCtx, entityKey)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return a, Transient(err)
		}
		return a, err
	})
}
