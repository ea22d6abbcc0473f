package cache

import (
	"sync"
	"time"

	"github.com/IvanBrykalov/replcache/internal/util"
)

// Shard is an independent, bounded partition of the cluster keyspace with its
// own lock, map, and an intrusive doubly linked list (head=MRU, tail=LRU).
// All methods are safe for concurrent use.
type Shard[V any] struct {
	id string

	// ---- guarded by mu ----
	mu   sync.RWMutex
	m    map[string]*node[V]
	head *node[V] // MRU
	tail *node[V] // LRU
	len  int
	cap  int

	opt *Options[V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

func newShard[V any](id string, capacity int, opt *Options[V]) *Shard[V] {
	return &Shard[V]{
		id:  id,
		m:   make(map[string]*node[V], capacity),
		cap: capacity,
		opt: opt,
	}
}

// ID returns the stable shard identifier.
func (s *Shard[V]) ID() string { return s.id }

// Capacity returns the maximum number of resident entries.
func (s *Shard[V]) Capacity() int { return s.cap }

// Get returns the value for key and promotes it to MRU.
// A missing or expired key is a miss; an expired entry is removed on the way.
func (s *Shard[V]) Get(key string) (V, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok {
		return s.missLocked()
	}
	if n.IsExpired(now) {
		s.evictLocked(n, EvictTTL)
		return s.missLocked()
	}

	n.HitCount++
	n.AccessCount++
	n.LastAccessedAt = now
	s.moveToFront(n)
	s.hits.Add(1)
	s.opt.Metrics.Hit(s.id)
	return n.Value, true
}

// Set inserts or overwrites key and marks it MRU. When key is new and the
// shard is full, exactly one LRU entry is evicted first.
// It returns false only when the value exceeds Options.MaxEntrySize.
func (s *Shard[V]) Set(key string, v V, ttl time.Duration) bool {
	if !s.admits(v) {
		return false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[key]; ok {
		n.Value = v
		n.TTL = ttl
		n.CreatedAt = now
		n.LastAccessedAt = now
		n.AccessCount++
		s.moveToFront(n)
		return true
	}

	if s.len >= s.cap && s.tail != nil {
		s.evictLocked(s.tail, EvictCapacity)
	}
	n := &node[V]{Entry: Entry[V]{
		Key:            key,
		Value:          v,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
	}}
	s.m[key] = n
	s.insertFront(n)
	s.opt.Metrics.Size(s.id, s.len)
	return true
}

// Delete removes key if present and reports whether it was there.
// Explicit deletes are not counted as evictions.
func (s *Shard[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[key]
	if !ok {
		return false
	}
	s.unlinkLocked(n)
	s.opt.Metrics.Size(s.id, s.len)
	return true
}

// Peek returns a snapshot of a live entry without touching LRU order,
// counters, or expiry.
func (s *Shard[V]) Peek(key string) (Entry[V], bool) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.m[key]
	if !ok || n.IsExpired(now) {
		return Entry[V]{}, false
	}
	return n.Entry, true
}

// Contains reports whether key is resident and live, without side effects.
func (s *Shard[V]) Contains(key string) bool {
	_, ok := s.Peek(key)
	return ok
}

// Keys returns a snapshot of resident keys from LRU to MRU. Expired but not
// yet accessed entries are included: they still occupy capacity.
func (s *Shard[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, s.len)
	for n := s.tail; n != nil; n = n.prev {
		keys = append(keys, n.Key)
	}
	return keys
}

// InvalidateMatching removes every resident key for which match returns true
// and returns how many were removed. The shard lock is held for one pass.
func (s *Shard[V]) InvalidateMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, n := range s.m {
		if match(k) {
			s.unlinkLocked(n)
			removed++
		}
	}
	if removed > 0 {
		s.opt.Metrics.Size(s.id, s.len)
	}
	return removed
}

// Len returns the number of resident entries, expired ones included.
func (s *Shard[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// Stats returns a point-in-time view of the shard counters.
func (s *Shard[V]) Stats() ShardStats {
	st := ShardStats{
		ID:        s.id,
		Size:      s.Len(),
		Capacity:  s.cap,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evicts.Load(),
	}
	st.HitRate = hitRate(st.Hits, st.Misses)
	return st
}

// ResetStats zeroes the hit, miss and eviction counters.
func (s *Shard[V]) ResetStats() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.evicts.Store(0)
}

// -------------------- internals (mu held) --------------------

func (s *Shard[V]) missLocked() (V, bool) {
	s.misses.Add(1)
	s.opt.Metrics.Miss(s.id)
	var zero V
	return zero, false
}

func (s *Shard[V]) admits(v V) bool {
	if s.opt.Sizer == nil || s.opt.MaxEntrySize <= 0 {
		return true
	}
	return s.opt.Sizer(v) <= s.opt.MaxEntrySize
}

func (s *Shard[V]) now() time.Time {
	if s.opt.Clock != nil {
		return time.Unix(0, s.opt.Clock.NowUnixNano())
	}
	return time.Now()
}

// insertFront inserts n at MRU in O(1).
func (s *Shard[V]) insertFront(n *node[V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
}

// moveToFront promotes n to MRU in O(1).
func (s *Shard[V]) moveToFront(n *node[V]) {
	if n == s.head {
		return
	}
	n.prev.next = n.next
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	s.head.prev = n
	s.head = n
}

// unlinkLocked removes n from the list and the map.
func (s *Shard[V]) unlinkLocked(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	delete(s.m, n.Key)
}

// evictLocked removes n, updates counters, and calls OnEvict.
// Only capacity evictions count towards the eviction statistic.
func (s *Shard[V]) evictLocked(n *node[V], reason EvictReason) {
	s.unlinkLocked(n)
	if reason == EvictCapacity {
		s.evicts.Add(1)
	}
	s.opt.Metrics.Evict(s.id, reason)
	s.opt.Metrics.Size(s.id, s.len)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.Key, n.Value, reason)
	}
}
