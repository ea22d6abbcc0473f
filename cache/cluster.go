package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/replcache/internal/util"
)

// Cluster is a fixed ring of shards with deterministic key placement and
// write replication. All methods are safe for concurrent use; the shard
// slice never changes after New, so the cluster itself holds no lock.
type Cluster[V any] struct {
	shards []*Shard[V]
	hash   func(string) uint64
	opt    Options[V]

	// loads coalesces concurrent GetOrLoad calls for the same key.
	loads singleflight.Group
}

// New constructs a cluster of opt.Shards shards, each holding up to
// opt.Capacity entries. Misconfiguration is returned as an error and
// nothing is built.
func New[V any](opt Options[V]) (*Cluster[V], error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	opt = opt.withDefaults()

	c := &Cluster[V]{
		shards: make([]*Shard[V], opt.Shards),
		hash:   opt.Hasher,
		opt:    opt,
	}
	if c.hash == nil {
		c.hash = util.XXHash64
	}
	for i := range c.shards {
		c.shards[i] = newShard[V](fmt.Sprintf("shard-%d", i), opt.Capacity, &c.opt)
	}

	opt.Logger.Info("cluster initialized",
		"cluster", opt.Name,
		"shards", opt.Shards,
		"capacity", opt.Capacity,
		"replication_factor", opt.ReplicationFactor,
		"consistency", string(opt.Consistency),
	)
	return c, nil
}

// MustNew is like New but panics on misconfiguration.
func MustNew[V any](opt Options[V]) *Cluster[V] {
	c, err := New(opt)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the cluster name.
func (c *Cluster[V]) Name() string { return c.opt.Name }

// Shards returns the number of shards.
func (c *Cluster[V]) Shards() int { return len(c.shards) }

// ReplicationFactor returns how many shards receive each write.
func (c *Cluster[V]) ReplicationFactor() int { return c.opt.ReplicationFactor }

// Consistency returns the configured consistency tag.
func (c *Cluster[V]) Consistency() ConsistencyLevel { return c.opt.Consistency }

// Shard returns the shard at index i. Reads must go through Get: a replica
// shard may hold an older or newer copy than the primary.
func (c *Cluster[V]) Shard(i int) *Shard[V] { return c.shards[i] }

// ShardFor returns the primary shard index of key. It depends only on the
// key and the shard count.
func (c *Cluster[V]) ShardFor(key string) int {
	return util.ShardIndex(c.hash(key), len(c.shards))
}

// ReplicasFor returns the shard indexes written by Set for key, primary first.
func (c *Cluster[V]) ReplicasFor(key string) []int {
	return util.ReplicaIndexes(c.ShardFor(key), c.opt.ReplicationFactor, len(c.shards))
}

// Get reads key from its primary shard only.
func (c *Cluster[V]) Get(key string) (V, bool) {
	return c.shards[c.ShardFor(key)].Get(key)
}

// Set writes key to its primary shard, then to the next ReplicationFactor-1
// shards in ring order. Replica writes complete before Set returns but are
// not atomic with the primary. A value rejected by Options.MaxEntrySize is
// written nowhere and Set returns false.
func (c *Cluster[V]) Set(key string, v V, ttl time.Duration) bool {
	idx := c.ReplicasFor(key)
	if !c.shards[idx[0]].Set(key, v, ttl) {
		c.opt.Logger.Debug("value rejected", "cluster", c.opt.Name, "key", key)
		return false
	}
	for _, r := range idx[1:] {
		c.shards[r].Set(key, v, ttl)
	}
	return true
}

// Delete removes key from its primary shard and reports whether it was
// present there. With Options.PropagateDeletes the replicas are cleared too;
// otherwise stale replica copies stay until evicted or invalidated.
func (c *Cluster[V]) Delete(key string) bool {
	idx := c.ReplicasFor(key)
	ok := c.shards[idx[0]].Delete(key)
	if c.opt.PropagateDeletes {
		for _, r := range idx[1:] {
			c.shards[r].Delete(key)
		}
	}
	return ok
}

// BulkSet calls Set for every item and returns the number of successful
// writes. It is not atomic: a failed item does not undo the others.
func (c *Cluster[V]) BulkSet(items map[string]V, ttl time.Duration) int {
	n := 0
	for k, v := range items {
		if c.Set(k, v, ttl) {
			n++
		}
	}
	return n
}

// InvalidateByPattern removes every key, on every shard, that matches the
// regular expression pattern at its start (so "user:" matches "user:1").
// It returns the total removed, replica copies included. The scan visits
// each shard under that shard's lock only, so keys written concurrently to
// an already scanned shard survive. Cost is O(total entries).
func (c *Cluster[V]) InvalidateByPattern(pattern string) (int, error) {
	// The raw pattern must parse alone; "a)|(b" would otherwise balance
	// against the anchor group and leave its second branch unanchored.
	if _, err := regexp.Compile(pattern); err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	re := regexp.MustCompile(`^(?:` + pattern + `)`)

	var removed atomic.Int64
	var g errgroup.Group
	for _, s := range c.shards {
		g.Go(func() error {
			removed.Add(int64(s.InvalidateMatching(re.MatchString)))
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	n := int(removed.Load())
	c.opt.Metrics.Invalidate(n)
	c.opt.Logger.Debug("pattern invalidated", "cluster", c.opt.Name, "pattern", pattern, "removed", n)
	return n, nil
}

// Len returns the number of resident entries across all shards, replica
// copies included.
func (c *Cluster[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Stats sums the per-shard counters and recomputes the cluster hit rate.
func (c *Cluster[V]) Stats() ClusterStats {
	st := ClusterStats{
		Name:              c.opt.Name,
		Shards:            len(c.shards),
		ReplicationFactor: c.opt.ReplicationFactor,
		Consistency:       c.opt.Consistency,
		ShardStats:        make([]ShardStats, 0, len(c.shards)),
	}
	for _, s := range c.shards {
		ss := s.Stats()
		st.TotalSize += ss.Size
		st.TotalHits += ss.Hits
		st.TotalMisses += ss.Misses
		st.TotalEvictions += ss.Evictions
		st.ShardStats = append(st.ShardStats, ss)
	}
	st.HitRate = hitRate(st.TotalHits, st.TotalMisses)
	return st
}

// ResetStats zeroes the counters of every shard.
func (c *Cluster[V]) ResetStats() {
	for _, s := range c.shards {
		s.ResetStats()
	}
}

// GetOrLoad returns the value for key; on a miss it loads via Options.Loader
// and stores the result with Options.DefaultTTL. Concurrent loads of the
// same key share one Loader call. Cancelling ctx releases only this caller.
func (c *Cluster[V]) GetOrLoad(ctx context.Context, key string) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	var zero V
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}

	ch := c.loads.DoChan(key, func() (any, error) {
		// A concurrent leader may have finished between our miss and DoChan.
		if v, ok := c.shards[c.ShardFor(key)].Peek(key); ok {
			return v.Value, nil
		}
		v, err := c.opt.Loader(ctx, key)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, c.opt.DefaultTTL)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V) // nil interface values come back as zero
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
