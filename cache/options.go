package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EvictReason explains why an entry was removed without the caller asking.
type EvictReason int

const (
	// EvictCapacity — the least-recently-used entry was dropped to admit a new key.
	EvictCapacity EvictReason = iota
	// EvictTTL — the entry was found expired on access and removed lazily.
	EvictTTL
)

func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	default:
		return "capacity"
	}
}

// ConsistencyLevel tags how replica writes relate to the primary write.
// Replica writes are never atomic with the primary and no read-repair is done;
// the tag is carried for reporting.
type ConsistencyLevel string

const (
	ConsistencyEventual ConsistencyLevel = "eventual"
	ConsistencyStrong   ConsistencyLevel = "strong"
)

// Metrics exposes cache observability hooks, labelled by shard id.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit(shard string)
	Miss(shard string)
	Evict(shard string, reason EvictReason)
	Size(shard string, entries int)
	// Invalidate reports the number of keys removed by one pattern invalidation.
	Invalidate(removed int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Cluster. New rejects invalid values instead of
// clamping them:
//   - Shards < 1                                  => ErrInvalidShardCount
//   - ReplicationFactor outside [1, Shards]       => ErrInvalidReplicationFactor
//   - Capacity < 1                                => ErrInvalidCapacity
//   - Consistency not eventual/strong             => ErrInvalidConsistency
//
// Zero values of the remaining fields are safe:
//   - Name == ""        => "replcache"
//   - Consistency == "" => ConsistencyEventual
//   - nil Hasher        => xxHash64
//   - nil Metrics       => NoopMetrics
//   - nil Logger        => slog.Default()
type Options[V any] struct {
	// Name identifies the cluster in stats and logs.
	Name string

	// Shards is the fixed number of shards in the ring.
	Shards int

	// Capacity is the entry count limit of every shard.
	Capacity int

	// ReplicationFactor is the number of shards, primary included, that
	// receive each Set.
	ReplicationFactor int

	Consistency ConsistencyLevel

	// PropagateDeletes extends Delete to the replica set. Off by default:
	// Delete touches the primary shard only.
	PropagateDeletes bool

	// Hasher maps a key to a 64-bit hash used for placement. It must be
	// deterministic across processes.
	Hasher func(key string) uint64

	// DefaultTTL applies to values stored by GetOrLoad (0 = no TTL).
	DefaultTTL time.Duration

	// Loader fetches a value on a GetOrLoad miss.
	Loader func(ctx context.Context, key string) (V, error)

	// Sizer and MaxEntrySize reject oversized values: when both are set,
	// Set refuses values whose Sizer result exceeds MaxEntrySize.
	Sizer        func(v V) int
	MaxEntrySize int

	// OnEvict is called for capacity and TTL evictions under the shard lock;
	// keep callbacks lightweight and never call back into the cache.
	OnEvict func(key string, v V, reason EvictReason)
	Metrics Metrics

	Logger *slog.Logger

	// Clock allows overriding the time source (tests). Nil => time.Now().
	Clock Clock
}

// Validate checks the construction preconditions enforced by New.
func (o Options[V]) Validate() error {
	if o.Shards < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidShardCount, o.Shards)
	}
	if o.ReplicationFactor < 1 || o.ReplicationFactor > o.Shards {
		return fmt.Errorf("%w: got %d with %d shards", ErrInvalidReplicationFactor, o.ReplicationFactor, o.Shards)
	}
	if o.Capacity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, o.Capacity)
	}
	switch o.Consistency {
	case "", ConsistencyEventual, ConsistencyStrong:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidConsistency, o.Consistency)
	}
	return nil
}

// withDefaults fills in optional fields.
func (o Options[V]) withDefaults() Options[V] {
	if o.Name == "" {
		o.Name = "replcache"
	}
	if o.Consistency == "" {
		o.Consistency = ConsistencyEventual
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
