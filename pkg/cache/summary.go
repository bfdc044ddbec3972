package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Summary is one preloaded Tier-1 artifact keyed by fingerprint.
type Summary[A any] struct {
	Fingerprint string
	Artifact    A
}

// summarySnapshot is an immutable Tier-1 generation.
type summarySnapshot struct {
	entries  map[string]StoredEntry
	bytes    int64
	loadedAt time.Time
}

// SummaryStore is the read-mostly Tier-1 store. Each Load builds a new
// snapshot and swaps it in, so Get never waits on a load in progress.
type SummaryStore[A any] struct {
	codec    Codec[A]
	maxBytes int64
	logger   zerolog.Logger

	loadMu   sync.Mutex
	snapshot atomic.Pointer[summarySnapshot]
}

// NewSummaryStore creates an empty Tier-1 store with the given byte budget.
func NewSummaryStore[A any](codec Codec[A], maxBytes int64, logger zerolog.Logger) *SummaryStore[A] {
	s := &SummaryStore[A]{
		codec:    codec,
		maxBytes: maxBytes,
		logger:   logger,
	}
	s.snapshot.Store(&summarySnapshot{entries: map[string]StoredEntry{}})
	return s
}

// Load replaces the store contents with entries, in order.
// Entries that fail to encode are skipped. When the next entry would exceed
// the byte budget, loading stops and the partial store is installed; the
// returned error then wraps ErrLoadBudgetExceeded. The returned count is the
// number of entries actually stored.
func (s *SummaryStore[A]) Load(entries []Summary[A]) (int, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	now := time.Now()
	next := &summarySnapshot{
		entries:  make(map[string]StoredEntry, len(entries)),
		loadedAt: now,
	}

	var budgetErr error
	for i, entry := range entries {
		data, err := s.codec.Encode(entry.Artifact)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("fingerprint", entry.Fingerprint).
				Msg("Skipping summary that failed to encode")
			continue
		}

		size := int64(len(data))
		prev, replacing := next.entries[entry.Fingerprint]
		projected := next.bytes + size
		if replacing {
			projected -= prev.Size()
		}
		if projected > s.maxBytes {
			budgetErr = fmt.Errorf("%w: stopped at entry %d of %d (%d of %d bytes used)",
				ErrLoadBudgetExceeded, i, len(entries), next.bytes, s.maxBytes)
			break
		}

		next.entries[entry.Fingerprint] = StoredEntry{
			Fingerprint: entry.Fingerprint,
			Data:        data,
			StoredAt:    now,
		}
		next.bytes = projected
	}

	s.snapshot.Store(next)

	CacheSize.WithLabelValues(tierLabel1).Set(float64(next.bytes))
	CacheEntries.WithLabelValues(tierLabel1).Set(float64(len(next.entries)))

	return len(next.entries), budgetErr
}

// Get returns the decoded summary for fingerprint.
// A stored entry that fails to decode is reported as not found.
func (s *SummaryStore[A]) Get(fingerprint string) (A, bool) {
	a, found, err := s.Lookup(fingerprint)
	if err != nil {
		return a, false
	}
	return a, found
}

// Lookup is Get with decode failures reported as an error wrapping
// ErrDecodeCorruption.
func (s *SummaryStore[A]) Lookup(fingerprint string) (A, bool, error) {
	var zero A

	entry, ok := s.snapshot.Load().entries[fingerprint]
	if !ok {
		return zero, false, nil
	}

	a, err := s.codec.Decode(entry.Data)
	if err != nil {
		return zero, false, fmt.Errorf("%w: tier1 %s: %v", ErrDecodeCorruption, fingerprint, err)
	}
	return a, true, nil
}

// Size returns the entry count and encoded bytes of the current snapshot.
func (s *SummaryStore[A]) Size() (int, int64) {
	snap := s.snapshot.Load()
	return len(snap.entries), snap.bytes
}

// MaxBytes returns the byte budget of the store.
func (s *SummaryStore[A]) MaxBytes() int64 {
	return s.maxBytes
}

// LoadedAt returns when the current snapshot was built (zero before the first Load).
func (s *SummaryStore[A]) LoadedAt() time.Time {
	return s.snapshot.Load().loadedAt
}
