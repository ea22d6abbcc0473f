package cache

import "time"

// Entry is a snapshot of one stored value and its bookkeeping.
type Entry[V any] struct {
	Key   string
	Value V

	// CreatedAt is set when the value is stored. Overwriting a key restarts
	// the TTL clock; the counters below carry over.
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// TTL <= 0 means the entry never expires.
	TTL time.Duration

	// HitCount counts successful reads; AccessCount also counts overwrites.
	HitCount    uint64
	AccessCount uint64
}

// IsExpired reports whether the entry outlived its TTL at now.
// An entry exactly TTL old is still live.
func (e *Entry[V]) IsExpired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}
