package cache

// ShardStats is a point-in-time snapshot of one shard.
type ShardStats struct {
	ID        string  `json:"id"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
}

// ClusterStats aggregates every shard. Shards are sampled one at a time, so
// the totals are not an atomic snapshot under concurrent traffic.
type ClusterStats struct {
	Name              string           `json:"cluster_name"`
	Shards            int              `json:"shards"`
	ReplicationFactor int              `json:"replication_factor"`
	Consistency       ConsistencyLevel `json:"consistency"`
	TotalSize         int              `json:"total_size"`
	TotalHits         uint64           `json:"total_hits"`
	TotalMisses       uint64           `json:"total_misses"`
	TotalEvictions    uint64           `json:"total_evictions"`
	HitRate           float64          `json:"cluster_hit_rate"`
	ShardStats        []ShardStats     `json:"shard_stats"`
}

// hitRate is hits/(hits+misses), or 0 before any access.
func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
