// Package cache provides a sharded, replicated, generic in-memory cache.
//
// Design
//
//   - Placement: a Cluster owns a fixed ring of N shards created once in New.
//     A key's primary shard is hash(key) mod N, with xxHash64 by default, so
//     placement is stable across calls, processes and restarts. There is no
//     rebalancing; resizing the ring requires a new cluster.
//
//   - Replication: Set writes the primary and then the next
//     ReplicationFactor-1 shards in ring order (wrapping). Replica writes are
//     not atomic with the primary and reads never consult replicas. Delete
//     touches the primary only unless Options.PropagateDeletes is set.
//
//   - Concurrency: every shard has its own RWMutex, so operations on
//     different shards never contend. BulkSet and InvalidateByPattern take
//     shard locks one at a time and are not atomic.
//
//   - Storage: each shard keeps a map[string]*node for lookups and an
//     intrusive MRU↔LRU doubly linked list for ordering. Capacity is an entry
//     count; admitting a new key into a full shard evicts exactly one LRU entry.
//
//   - TTL: per-entry, evaluated lazily on access. Nothing sweeps in the
//     background, so an expired entry occupies capacity until it is read,
//     evicted or invalidated.
//
//   - Metrics: Options.Metrics receives per-shard Hit/Miss/Evict/Size
//     signals; see package metrics/prom for a Prometheus adapter. Stats and
//     Cluster.Stats return counters and hit rates directly.
//
// Basic usage
//
//	c, err := cache.New(cache.Options[[]byte]{
//	    Name:              "sessions",
//	    Shards:            4,
//	    Capacity:          10_000,
//	    ReplicationFactor: 2,
//	})
//	if err != nil {
//	    return err
//	}
//	c.Set("user:1", []byte("alice"), time.Hour)
//	if v, ok := c.Get("user:1"); ok {
//	    _ = v
//	}
//	n, err := c.InvalidateByPattern("user:.*")
//
// A process-wide cluster, when one is really needed, is created explicitly
// with InitDefault and fetched with Default.
package cache
