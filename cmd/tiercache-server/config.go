package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/tiercache/pkg/cache"
	"gopkg.in/yaml.v3"
)

// serverConfig holds everything the server binary can be configured with.
type serverConfig struct {
	Port          string `yaml:"port"`
	RedisURL      string `yaml:"redis_url"`
	SummaryPrefix string `yaml:"summary_prefix"`
	LogLevel      string `yaml:"log_level"`
	LogPretty     bool   `yaml:"log_pretty"`

	// Compress stores artifacts zstd-compressed
	Compress bool `yaml:"compress"`

	// SeedEntities generates this many summaries for Tier-1 when the
	// summary source is empty
	SeedEntities int `yaml:"seed_entities"`

	// WarmKeys are requested at the detailed level on boot
	WarmKeys []string `yaml:"warm_keys"`

	Synthesis synthesisConfig `yaml:"synthesis"`
	Cache     cache.Config    `yaml:"cache"`
}

type synthesisConfig struct {
	Latency       time.Duration `yaml:"latency"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxAttempts   int           `yaml:"max_attempts"`
	HistoryLength int           `yaml:"history_length"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Port:          "8080",
		SummaryPrefix: "tc:summary:",
		LogLevel:      "info",
		Compress:      true,
		SeedEntities:  1000,
		Synthesis: synthesisConfig{
			Latency:       50 * time.Millisecond,
			Timeout:       5 * time.Second,
			MaxAttempts:   3,
			HistoryLength: 200,
		},
		Cache: cache.DefaultConfig(),
	}
}

// loadConfig applies, in order: defaults, the YAML file named by
// CONFIG_FILE, then individual environment variables.
func loadConfig() (serverConfig, error) {
	cfg := defaultServerConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Cache.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *serverConfig) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SummaryPrefix = getEnv("SUMMARY_PREFIX", cfg.SummaryPrefix)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Cache.Eviction = cache.EvictionPolicy(getEnv("EVICTION_POLICY", string(cfg.Cache.Eviction)))

	if v := os.Getenv("WARM_KEYS"); v != "" {
		cfg.WarmKeys = splitList(v)
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{"TIER1_MAX_BYTES", &cfg.Cache.Tier1MaxBytes},
		{"TIER3_MAX_BYTES", &cfg.Cache.Tier3MaxBytes},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("parse %s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("PROMOTION_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PROMOTION_THRESHOLD: %w", err)
		}
		cfg.Cache.PromotionThreshold = n
	}
	if v := os.Getenv("SEED_ENTITIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SEED_ENTITIES: %w", err)
		}
		cfg.SeedEntities = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"COALESCE_SYNTHESIS", &cfg.Cache.CoalesceSynthesis},
		{"COMPRESS", &cfg.Compress},
		{"LOG_PRETTY", &cfg.LogPretty},
	}
	for _, e := range bools {
		if v := os.Getenv(e.key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", e.key, err)
			}
			*e.dst = b
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
