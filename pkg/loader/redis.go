package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Sternrassler/tiercache/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultPrefix is the Redis key prefix for stored summaries.
	DefaultPrefix = "tc:summary:"

	// scanCount is the COUNT hint passed to SCAN.
	scanCount = 500

	// fetchBatch is the number of GETs sent per pipeline.
	fetchBatch = 200
)

// RedisLoader loads Tier-1 summaries stored as <prefix><entity> keys.
type RedisLoader[A any] struct {
	redis  *redis.Client
	prefix string
	codec  cache.Codec[A]
	logger zerolog.Logger
}

// NewRedisLoader creates a loader reading keys under prefix.
func NewRedisLoader[A any](redisClient *redis.Client, prefix string, codec cache.Codec[A], logger zerolog.Logger) *RedisLoader[A] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisLoader[A]{
		redis:  redisClient,
		prefix: prefix,
		codec:  codec,
		logger: logger,
	}
}

// Load returns every decodable summary under the prefix, ordered by entity.
// Keys that fail to decode, or disappear between SCAN and GET, are skipped.
func (l *RedisLoader[A]) Load(ctx context.Context) ([]cache.Entry[A], error) {
	keys, err := l.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	entries := make([]cache.Entry[A], 0, len(keys))
	skipped := 0

	for start := 0; start < len(keys); start += fetchBatch {
		end := min(start+fetchBatch, len(keys))
		batch := keys[start:end]

		pipe := l.redis.Pipeline()
		cmds := make([]*redis.StringCmd, len(batch))
		for i, key := range batch {
			cmds[i] = pipe.Get(ctx, key)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis get summaries: %w", err)
		}

		for i, cmd := range cmds {
			data, err := cmd.Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis get %s: %w", batch[i], err)
			}

			artifact, err := l.codec.Decode(data)
			if err != nil {
				skipped++
				l.logger.Warn().Err(err).Str("key", batch[i]).Msg("Skipping undecodable summary")
				continue
			}

			entries = append(entries, cache.Entry[A]{
				Entity:   strings.TrimPrefix(batch[i], l.prefix),
				Artifact: artifact,
			})
		}
	}

	l.logger.Info().
		Int("keys", len(keys)).
		Int("loaded", len(entries)).
		Int("skipped", skipped).
		Str("prefix", l.prefix).
		Msg("Loaded summaries from Redis")

	return entries, nil
}

func (l *RedisLoader[A]) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := l.redis.Scan(ctx, 0, escapeGlob(l.prefix)+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", l.prefix, err)
	}
	return keys, nil
}

// Seed stores entries under the prefix, replacing existing values.
func (l *RedisLoader[A]) Seed(ctx context.Context, entries []cache.Entry[A]) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := l.redis.Pipeline()
	for _, e := range entries {
		data, err := l.codec.Encode(e.Artifact)
		if err != nil {
			return fmt.Errorf("encode summary %q: %w", e.Entity, err)
		}
		pipe.Set(ctx, l.prefix+e.Entity, data, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store summaries in redis: %w", err)
	}

	l.logger.Debug().Int("count", len(entries)).Str("prefix", l.prefix).Msg("Seeded summaries")
	return nil
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
