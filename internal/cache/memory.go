package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultL1MaxSize bounds the in-process store when no capacity is
// configured.
const DefaultL1MaxSize = 1000

// MemoryStore is the L1 tier: a bounded in-process store with LRU
// eviction and lazy per-entry expiry. All operations are pure in-memory
// and guarded by a single mutex; nothing here ever blocks on I/O.
//
// No tag index is kept. Tag invalidation is a full scan, which is
// acceptable because the store is small and bounded.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently accessed
	maxSize int

	evictions int64
}

// NewMemoryStore creates a bounded L1 store. maxSize is the maximum
// entry count, not a byte bound.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultL1MaxSize
	}
	return &MemoryStore{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the stored value for key, or false if the key is unknown
// or expired. Expired entries are removed as a side effect. A hit
// updates the entry's access metadata and LRU position.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*Entry)
	now := time.Now()
	if entry.Expired(now) {
		s.remove(elem)
		return nil, false
	}

	entry.touch(now)
	s.order.MoveToFront(elem)
	return entry.Value, true
}

// Set inserts or overwrites an entry. When the store is at capacity the
// least-recently-accessed entry is evicted synchronously before the
// insert. ttl <= 0 means no expiry.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if elem, ok := s.entries[key]; ok {
		entry := elem.Value.(*Entry)
		entry.Value = value
		entry.CreatedAt = now
		entry.ExpiresAt = expiry(now, ttl)
		entry.SizeBytes = len(value)
		entry.Tags = tags
		s.order.MoveToFront(elem)
		return
	}

	if s.order.Len() >= s.maxSize {
		s.evictLRU()
	}

	entry := &Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    expiry(now, ttl),
		LastAccessed: now,
		SizeBytes:    len(value),
		Tags:         tags,
	}
	s.entries[key] = s.order.PushFront(entry)
}

// Delete removes the key if present and reports whether it was.
func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return false
	}
	s.remove(elem)
	return true
}

// InvalidateByTags removes every entry carrying at least one of the
// given tags and returns the number removed.
func (s *MemoryStore) InvalidateByTags(tags []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*Entry).hasAnyTag(tags) {
			s.remove(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Sweep removes all expired entries and returns the number removed.
// Expiry is already enforced lazily on read; the sweep only reclaims
// memory for entries nobody asks for again.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*Entry).Expired(now) {
			s.remove(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Len returns the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Capacity returns the configured maximum entry count.
func (s *MemoryStore) Capacity() int {
	return s.maxSize
}

// Evictions returns the number of entries removed under capacity
// pressure over the store's lifetime.
func (s *MemoryStore) Evictions() int64 {
	return atomic.LoadInt64(&s.evictions)
}

// evictLRU removes the least-recently-accessed entry. Entries that were
// never re-read keep their insert position, so the back of the list is
// also the oldest by creation time.
func (s *MemoryStore) evictLRU() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	s.remove(elem)
	atomic.AddInt64(&s.evictions, 1)
}

func (s *MemoryStore) remove(elem *list.Element) {
	entry := elem.Value.(*Entry)
	delete(s.entries, entry.Key)
	s.order.Remove(elem)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
