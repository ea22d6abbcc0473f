// Package util contains internal helpers (hashing, shard placement, padding).
//
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// XXHash64 hashes a key with 64-bit xxHash. It is the default placement
// hash: well distributed and identical across processes and restarts.
func XXHash64(key string) uint64 {
	return xxhash.Sum64String(key)
}

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// FNV64a hashes a key with 64-bit FNV-1a without allocating.
// Slower to mix than xxHash on long keys; kept as a dependency-free
// alternative for callers that need to reproduce FNV placement.
func FNV64a(key string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime64
	}
	return h
}
