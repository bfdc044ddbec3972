package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/tiercache/internal/profile"
	"github.com/Sternrassler/tiercache/pkg/cache"
	"github.com/Sternrassler/tiercache/pkg/loader"
	"github.com/Sternrassler/tiercache/pkg/logging"
	"github.com/Sternrassler/tiercache/pkg/synth"
	"github.com/Sternrassler/tiercache/pkg/warmup"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tiercache-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, closeCodec, err := newCodec(cfg.Compress)
	if err != nil {
		return err
	}
	defer closeCodec()

	manager, err := cache.NewManager(cfg.Cache, newSynthesizer(cfg.Synthesis), codec, logging.NewLogger("cache"))
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")
	}

	src, err := summarySource(ctx, cfg, redisClient, codec)
	if err != nil {
		return err
	}
	if _, err := manager.Reload(ctx, src); err != nil && !errors.Is(err, cache.ErrLoadBudgetExceeded) {
		return fmt.Errorf("load tier1: %w", err)
	}

	if len(cfg.WarmKeys) > 0 {
		wcfg := warmup.DefaultConfig()
		wcfg.Passes = cfg.Cache.PromotionThreshold
		if _, err := warmup.NewWarmer[profile.Profile](manager, wcfg).Warm(ctx, cfg.WarmKeys, cache.LevelDetailed); err != nil {
			logger.Warn().Err(err).Msg("Warmup finished with errors")
		}
	}

	srv := &server{cache: manager, redis: redisClient, logger: logger}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Int64("tier1_max_bytes", cfg.Cache.Tier1MaxBytes).
			Int64("tier3_max_bytes", cfg.Cache.Tier3MaxBytes).
			Int("promotion_threshold", cfg.Cache.PromotionThreshold).
			Str("eviction", string(cfg.Cache.Eviction)).
			Msg("Starting tiercache server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newCodec(compress bool) (cache.Codec[profile.Profile], func(), error) {
	base := cache.JSONCodec[profile.Profile]{}
	if !compress {
		return base, func() {}, nil
	}

	codec, err := cache.NewZstdCodec[profile.Profile](base, zstd.SpeedDefault)
	if err != nil {
		return nil, nil, fmt.Errorf("create codec: %w", err)
	}
	return codec, func() { codec.Close() }, nil
}

func newSynthesizer(cfg synthesisConfig) cache.Synthesizer[profile.Profile] {
	var s cache.Synthesizer[profile.Profile] = profile.Synthesizer{
		Latency:       cfg.Latency,
		HistoryLength: cfg.HistoryLength,
	}
	if cfg.Timeout > 0 {
		s = synth.WithTimeout(s, cfg.Timeout)
	}

	retryCfg := synth.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}
	return synth.WithRetry(s, retryCfg, logging.NewLogger("synth"))
}

// summarySource picks the Tier-1 loader: Redis when configured (seeding it
// when empty), otherwise generated summaries.
func summarySource(ctx context.Context, cfg serverConfig, redisClient *redis.Client, codec cache.Codec[profile.Profile]) (cache.Loader[profile.Profile], error) {
	generated := generateSummaries(cfg.SeedEntities)

	if redisClient == nil {
		return loader.NewStatic(generated...), nil
	}

	rl := loader.NewRedisLoader(redisClient, cfg.SummaryPrefix, codec, logging.NewLogger("loader"))
	existing, err := rl.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read summaries: %w", err)
	}
	if len(existing) == 0 {
		if err := rl.Seed(ctx, generated); err != nil {
			return nil, fmt.Errorf("seed summaries: %w", err)
		}
	}
	return rl, nil
}

func generateSummaries(n int) []cache.Entry[profile.Profile] {
	entries := make([]cache.Entry[profile.Profile], 0, n)
	for i := 0; i < n; i++ {
		entity := fmt.Sprintf("user-%d", i)
		entries = append(entries, cache.Entry[profile.Profile]{Entity: entity, Artifact: profile.Summary(entity)})
	}
	return entries
}
