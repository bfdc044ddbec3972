package cache

import (
	"time"
)

// StoredEntry represents one encoded artifact held by a cache tier.
type StoredEntry struct {
	// Fingerprint is the lookup key of the entry
	Fingerprint string

	// Data is the codec output; it is never modified after insertion
	Data []byte

	// StoredAt is when the entry was inserted
	StoredAt time.Time
}

// Size returns the encoded size of the entry in bytes.
func (e *StoredEntry) Size() int64 {
	return int64(len(e.Data))
}

// Age returns how long the entry has been stored.
func (e *StoredEntry) Age() time.Duration {
	return time.Since(e.StoredAt)
}
