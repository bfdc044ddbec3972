package cache

import (
	"fmt"
)

// EvictionPolicy selects how the Tier-3 store picks its next victim.
type EvictionPolicy string

const (
	// EvictionInsertion evicts the oldest inserted entry. Reads never reorder.
	EvictionInsertion EvictionPolicy = "insertion"

	// EvictionLRU evicts the least recently read or inserted entry.
	EvictionLRU EvictionPolicy = "lru"
)

// Configuration limits enforced by Validate.
const (
	MaxTierBytes          int64 = 64 << 30
	MaxPromotionThreshold       = 1_000_000
)

// Config holds the cache configuration.
type Config struct {
	// Tier1MaxBytes bounds the encoded size of all preloaded summaries
	Tier1MaxBytes int64 `yaml:"tier1_max_bytes"`

	// Tier3MaxBytes bounds the encoded size of all promoted detailed artifacts
	Tier3MaxBytes int64 `yaml:"tier3_max_bytes"`

	// PromotionThreshold is the number of detailed syntheses after which
	// an artifact is promoted into Tier-3
	PromotionThreshold int `yaml:"promotion_threshold"`

	// Eviction is the Tier-3 eviction policy (default: insertion order)
	Eviction EvictionPolicy `yaml:"eviction"`

	// CoalesceSynthesis shares one in-flight synthesis between concurrent
	// requests for the same fingerprint
	CoalesceSynthesis bool `yaml:"coalesce_synthesis"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Tier1MaxBytes:      64 << 20,  // 64 MiB
		Tier3MaxBytes:      256 << 20, // 256 MiB
		PromotionThreshold: 3,
		Eviction:           EvictionInsertion,
		CoalesceSynthesis:  false,
	}
}

// Validate checks that every option is within its accepted range.
// An empty Eviction is accepted and treated as EvictionInsertion.
func (c Config) Validate() error {
	if c.Tier1MaxBytes <= 0 || c.Tier1MaxBytes > MaxTierBytes {
		return fmt.Errorf("%w: tier1_max_bytes must be in (0, %d] (got %d)", ErrInvalidConfig, MaxTierBytes, c.Tier1MaxBytes)
	}
	if c.Tier3MaxBytes <= 0 || c.Tier3MaxBytes > MaxTierBytes {
		return fmt.Errorf("%w: tier3_max_bytes must be in (0, %d] (got %d)", ErrInvalidConfig, MaxTierBytes, c.Tier3MaxBytes)
	}
	if c.PromotionThreshold < 1 || c.PromotionThreshold > MaxPromotionThreshold {
		return fmt.Errorf("%w: promotion_threshold must be in [1, %d] (got %d)", ErrInvalidConfig, MaxPromotionThreshold, c.PromotionThreshold)
	}
	switch c.Eviction {
	case "", EvictionInsertion, EvictionLRU:
	default:
		return fmt.Errorf("%w: unknown eviction policy %q", ErrInvalidConfig, c.Eviction)
	}
	return nil
}

func (c Config) evictionPolicy() EvictionPolicy {
	if c.Eviction == "" {
		return EvictionInsertion
	}
	return c.Eviction
}
