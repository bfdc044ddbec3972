package cache

import (
	"bytes"
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PromotionStore is the byte-budgeted Tier-3 store for detailed artifacts.
//
// Entries are kept in a list ordered oldest first. With EvictionInsertion
// the order only changes on insert and removal; with EvictionLRU a Get moves
// the entry to the back. Every operation runs under one mutex so the
// check-and-evict sequence in Put is atomic.
type PromotionStore struct {
	mu        sync.Mutex
	maxBytes  int64
	curBytes  int64
	policy    EvictionPolicy
	order     *list.List
	items     map[string]*list.Element
	evictions uint64
	logger    zerolog.Logger
}

// NewPromotionStore creates an empty Tier-3 store.
func NewPromotionStore(maxBytes int64, policy EvictionPolicy, logger zerolog.Logger) *PromotionStore {
	if policy == "" {
		policy = EvictionInsertion
	}
	return &PromotionStore{
		maxBytes: maxBytes,
		policy:   policy,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		logger:   logger,
	}
}

// Put stores data under fingerprint, evicting the oldest entries until it fits.
// Storing an already present fingerprint is a no-op. Data larger than the
// whole budget fails with ErrEntryTooLarge and leaves the store untouched.
func (s *PromotionStore) Put(fingerprint string, data []byte) error {
	_, err := s.put(fingerprint, data)
	return err
}

// put reports whether a new entry was inserted.
func (s *PromotionStore) put(fingerprint string, data []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[fingerprint]; ok {
		return false, nil
	}

	size := int64(len(data))
	if size > s.maxBytes {
		return false, fmt.Errorf("%w: %d bytes exceeds tier3 budget of %d bytes", ErrEntryTooLarge, size, s.maxBytes)
	}

	for s.curBytes+size > s.maxBytes && s.order.Len() > 0 {
		s.removeElement(s.order.Front(), evictReasonBudget)
	}

	entry := &StoredEntry{
		Fingerprint: fingerprint,
		Data:        bytes.Clone(data),
		StoredAt:    time.Now(),
	}
	s.items[fingerprint] = s.order.PushBack(entry)
	s.curBytes += size

	s.updateGauges()
	return true, nil
}

// Get returns the encoded artifact for fingerprint.
// The returned slice is shared with the store and must not be modified.
func (s *PromotionStore) Get(fingerprint string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[fingerprint]
	if !ok {
		return nil, false
	}
	if s.policy == EvictionLRU {
		s.order.MoveToBack(elem)
	}
	return elem.Value.(*StoredEntry).Data, true
}

// Contains reports whether fingerprint is stored, without touching recency.
func (s *PromotionStore) Contains(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[fingerprint]
	return ok
}

// Evict removes fingerprint and reports whether it was present.
func (s *PromotionStore) Evict(fingerprint string) bool {
	return s.evict(fingerprint, evictReasonManual)
}

func (s *PromotionStore) evict(fingerprint, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[fingerprint]
	if !ok {
		return false
	}
	s.removeElement(elem, reason)
	s.updateGauges()
	return true
}

// evictIf removes fingerprint only while it still holds data, so a caller
// acting on a stale read cannot drop an entry stored after that read.
func (s *PromotionStore) evictIf(fingerprint string, data []byte, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[fingerprint]
	if !ok || !sameBytes(elem.Value.(*StoredEntry).Data, data) {
		return false
	}
	s.removeElement(elem, reason)
	s.updateGauges()
	return true
}

// sameBytes reports whether a and b are the same stored slice, not merely equal.
func sameBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

// removeElement must be called with s.mu held.
func (s *PromotionStore) removeElement(elem *list.Element, reason string) {
	entry := elem.Value.(*StoredEntry)
	s.order.Remove(elem)
	delete(s.items, entry.Fingerprint)
	s.curBytes -= entry.Size()
	s.evictions++

	CacheEvictions.WithLabelValues(reason).Inc()
	s.logger.Debug().
		Str("fingerprint", entry.Fingerprint).
		Str("reason", reason).
		Int64("size_bytes", entry.Size()).
		Dur("age", entry.Age()).
		Int64("current_bytes", s.curBytes).
		Msg("Evicted tier3 entry")
}

// updateGauges must be called with s.mu held.
func (s *PromotionStore) updateGauges() {
	CacheSize.WithLabelValues(tierLabel3).Set(float64(s.curBytes))
	CacheEntries.WithLabelValues(tierLabel3).Set(float64(s.order.Len()))
}

// Size returns the entry count and encoded bytes currently stored.
func (s *PromotionStore) Size() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.order.Len(), s.curBytes
}

// MaxBytes returns the byte budget of the store.
func (s *PromotionStore) MaxBytes() int64 {
	return s.maxBytes
}

// Evictions returns the total number of entries removed for any reason.
func (s *PromotionStore) Evictions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.evictions
}

// Keys returns the stored fingerprints, next victim first.
func (s *PromotionStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*StoredEntry).Fingerprint)
	}
	return keys
}
