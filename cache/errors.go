package cache

import "errors"

// Construction errors. New wraps them with the offending value.
var (
	ErrInvalidShardCount        = errors.New("cache: shard count must be >= 1")
	ErrInvalidReplicationFactor = errors.New("cache: replication factor must be in [1, shards]")
	ErrInvalidCapacity          = errors.New("cache: shard capacity must be >= 1")
	ErrInvalidConsistency       = errors.New("cache: unknown consistency level")
)

var (
	// ErrInvalidPattern is returned by InvalidateByPattern when the pattern
	// does not compile. The regexp error is wrapped.
	ErrInvalidPattern = errors.New("cache: invalid invalidation pattern")

	// ErrNoLoader is returned by GetOrLoad when no Loader was configured.
	ErrNoLoader = errors.New("cache: no Loader provided")

	ErrDefaultInitialized    = errors.New("cache: default cluster already initialized")
	ErrDefaultNotInitialized = errors.New("cache: default cluster not initialized")
)
