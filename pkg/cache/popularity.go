package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// trackerShards must be a power of two.
const trackerShards = 64

type trackerShard struct {
	mu     sync.Mutex
	counts map[string]int
}

// Tracker counts detailed lookups per fingerprint. Counters are spread
// over independently locked shards so increments for unrelated keys do
// not contend. Counters are never evicted.
type Tracker struct {
	shards [trackerShards]trackerShard
}

// NewTracker creates an empty popularity tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i].counts = make(map[string]int)
	}
	return t
}

func (t *Tracker) shard(fingerprint string) *trackerShard {
	return &t.shards[xxhash.Sum64String(fingerprint)&(trackerShards-1)]
}

// RecordAccess increments the counter for fingerprint and returns the new value.
func (t *Tracker) RecordAccess(fingerprint string) int {
	s := t.shard(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[fingerprint]++
	return s.counts[fingerprint]
}

// Count returns the current counter for fingerprint.
func (t *Tracker) Count(fingerprint string) int {
	s := t.shard(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[fingerprint]
}

// ShouldPromote reports whether fingerprint has reached threshold.
// It keeps returning true after the first crossing.
func (t *Tracker) ShouldPromote(fingerprint string, threshold int) bool {
	return t.Count(fingerprint) >= threshold
}

// Len returns the number of tracked fingerprints.
func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.counts)
		s.mu.Unlock()
	}
	return n
}
