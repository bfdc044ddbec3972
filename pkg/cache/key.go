package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// Detail levels accepted by Manager.Get.
const (
	// LevelBasic requests the compact summary served from Tier-1.
	LevelBasic = "basic"

	// LevelDetailed requests the full artifact, served from Tier-3 once promoted.
	LevelDetailed = "detailed"
)

// fingerprintBytes is the digest width kept from SHA-256 (128 bits).
const fingerprintBytes = 16

// Key represents the logical identity of a cached artifact.
type Key struct {
	// Entity is the entity identifier (e.g., "alice" or "user:42")
	Entity string

	// Level is the requested detail level (LevelBasic or LevelDetailed)
	Level string
}

// String generates the canonical, human-readable form of the key.
// Format: tc:level:entity
//
// Example:
//
//	tc:detailed:alice
func (k Key) String() string {
	return strings.Join([]string{"tc", k.Level, k.Entity}, ":")
}

// Fingerprint returns the 128-bit hex digest of the canonical key.
// The level is hashed before the entity behind its 8-byte big-endian
// length, so no two (entity, level) pairs produce the same input.
func (k Key) Fingerprint() string {
	h := sha256.New()
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(k.Level))))
	h.Write([]byte(k.Level))
	h.Write([]byte(k.Entity))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:fingerprintBytes])
}

// Fingerprint derives the cache key for an entity at the given detail level.
func Fingerprint(entityKey, detailLevel string) string {
	return Key{Entity: entityKey, Level: detailLevel}.Fingerprint()
}

// ValidLevel reports whether level is one of the supported detail levels.
func ValidLevel(level string) bool {
	return level == LevelBasic || level == LevelDetailed
}
