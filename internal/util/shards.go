package util

import "runtime"

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism: nextPow2(2*GOMAXPROCS), clamped to [1..256].
// Used only for command-line defaults; the cache itself never guesses.
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return n
}

// ShardIndex maps a 64-bit hash to a shard index in [0, shards).
// Power-of-two counts take the mask path; any other count uses modulo,
// so the result is always hash mod shards.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}

// ReplicaIndexes returns the replica set for a primary index: the primary
// itself followed by the next factor-1 shards in ring order, wrapping around.
// factor must be in [1, shards].
func ReplicaIndexes(primary, factor, shards int) []int {
	out := make([]int, factor)
	for i := range out {
		out[i] = (primary + i) % shards
	}
	return out
}
