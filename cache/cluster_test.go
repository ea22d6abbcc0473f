package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/replcache/internal/util"
)

func TestNew_RejectsMisconfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Options[int]
		want error
	}{
		{name: "zero shards", opt: Options[int]{Shards: 0, Capacity: 1, ReplicationFactor: 1}, want: ErrInvalidShardCount},
		{name: "negative shards", opt: Options[int]{Shards: -2, Capacity: 1, ReplicationFactor: 1}, want: ErrInvalidShardCount},
		{name: "zero replication", opt: Options[int]{Shards: 2, Capacity: 1, ReplicationFactor: 0}, want: ErrInvalidReplicationFactor},
		{name: "replication above shards", opt: Options[int]{Shards: 2, Capacity: 1, ReplicationFactor: 3}, want: ErrInvalidReplicationFactor},
		{name: "zero capacity", opt: Options[int]{Shards: 2, Capacity: 0, ReplicationFactor: 1}, want: ErrInvalidCapacity},
		{name: "unknown consistency", opt: Options[int]{Shards: 2, Capacity: 1, ReplicationFactor: 1, Consistency: "quorum"}, want: ErrInvalidConsistency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opt.Logger = quietLogger()
			c, err := New(tt.opt)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, c)
			assert.Panics(t, func() { MustNew(tt.opt) })
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 3, Capacity: 5, ReplicationFactor: 1})
	assert.Equal(t, "replcache", c.Name())
	assert.Equal(t, 3, c.Shards())
	assert.Equal(t, 1, c.ReplicationFactor())
	assert.Equal(t, ConsistencyEventual, c.Consistency())
	for i := 0; i < c.Shards(); i++ {
		assert.Equal(t, "shard-"+strconv.Itoa(i), c.Shard(i).ID())
		assert.Equal(t, 5, c.Shard(i).Capacity())
	}
}

func TestCluster_PlacementIsDeterministic(t *testing.T) {
	t.Parallel()

	opt := Options[int]{Shards: 7, Capacity: 8, ReplicationFactor: 1}
	a := newTestCluster(t, opt)
	b := newTestCluster(t, opt)

	for i := 0; i < 1_000; i++ {
		k := "key-" + strconv.Itoa(i)
		idx := a.ShardFor(k)
		require.Equal(t, idx, a.ShardFor(k))
		require.Equal(t, idx, b.ShardFor(k), "independent clusters must agree")
		require.Equal(t, int(util.XXHash64(k)%7), idx, "placement is hash mod shards")
	}

	// Insertion history must not influence placement.
	before := a.ShardFor("stable")
	for i := 0; i < 100; i++ {
		a.Set("filler-"+strconv.Itoa(i), i, 0)
	}
	assert.Equal(t, before, a.ShardFor("stable"))
}

func TestCluster_CustomHasher(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 4, Capacity: 2, ReplicationFactor: 1, Hasher: util.FNV64a})
	assert.Equal(t, int(util.FNV64a("abc")%4), c.ShardFor("abc"))
}

func TestCluster_GetReadsPrimaryOnly(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[string]{Shards: 4, Capacity: 8, ReplicationFactor: 2})
	c.Set("k", "v1", 0)

	// Diverge the replica by writing to it directly; Get must not see it.
	idx := c.ReplicasFor("k")
	c.Shard(idx[1]).Set("k", "replica-only", 0)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestCluster_ReplicationFanOut(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[string]{Shards: 4, Capacity: 8, ReplicationFactor: 2})
	require.True(t, c.Set("k", "v", 0))

	i := c.ShardFor("k")
	assert.True(t, c.Shard(i).Contains("k"))
	assert.True(t, c.Shard((i+1)%4).Contains("k"), "replica must be written before Set returns")
	assert.Equal(t, 2, c.Len())

	for s := 0; s < 4; s++ {
		if s != i && s != (i+1)%4 {
			assert.False(t, c.Shard(s).Contains("k"), "shard %d is outside the replica set", s)
		}
	}
}

func TestCluster_FullReplicationWrapsRing(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 3, Capacity: 4, ReplicationFactor: 3})
	c.Set("everywhere", 1, 0)
	for s := 0; s < 3; s++ {
		assert.True(t, c.Shard(s).Contains("everywhere"))
	}
}

func TestCluster_DeletePrimaryOnlyByDefault(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 4, Capacity: 8, ReplicationFactor: 2})
	c.Set("k", 1, 0)
	idx := c.ReplicasFor("k")

	assert.True(t, c.Delete("k"))
	assert.False(t, c.Shard(idx[0]).Contains("k"))
	assert.True(t, c.Shard(idx[1]).Contains("k"), "replica copy stays without PropagateDeletes")
	assert.False(t, c.Delete("k"))

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCluster_DeletePropagates(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 4, Capacity: 8, ReplicationFactor: 3, PropagateDeletes: true})
	c.Set("k", 1, 0)
	require.Equal(t, 3, c.Len())

	assert.True(t, c.Delete("k"))
	assert.Zero(t, c.Len())
}

func TestCluster_BulkSet(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[[]byte]{
		Shards:            4,
		Capacity:          16,
		ReplicationFactor: 1,
		Sizer:             func(v []byte) int { return len(v) },
		MaxEntrySize:      3,
	})
	n := c.BulkSet(map[string][]byte{
		"a": []byte("1"),
		"b": []byte("22"),
		"c": []byte("toolong"),
	}, time.Minute)

	assert.Equal(t, 2, n, "oversized value is the only failure")
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("c")
	assert.False(t, ok)
}

func TestCluster_InvalidateByPattern(t *testing.T) {
	t.Parallel()

	for _, rf := range []int{1, 2} {
		t.Run(fmt.Sprintf("rf=%d", rf), func(t *testing.T) {
			c := newTestCluster(t, Options[int]{Shards: 4, Capacity: 8, ReplicationFactor: rf})
			c.Set("user:1", 1, 0)
			c.Set("user:2", 2, 0)
			c.Set("order:1", 3, 0)

			n, err := c.InvalidateByPattern("user:.*")
			require.NoError(t, err)
			assert.Equal(t, 2*rf, n, "every stored copy is counted")

			for s := 0; s < c.Shards(); s++ {
				for _, k := range c.Shard(s).Keys() {
					assert.Equal(t, "order:1", k)
				}
			}
			_, ok := c.Get("order:1")
			assert.True(t, ok)
		})
	}
}

func TestCluster_InvalidateByPatternIsAnchored(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 2, Capacity: 8, ReplicationFactor: 1})
	c.Set("user:1", 1, 0)
	c.Set("olduser:1", 2, 0)

	n, err := c.InvalidateByPattern("user")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "pattern matches at the start of the key only")
	_, ok := c.Get("olduser:1")
	assert.True(t, ok)
}

func TestCluster_InvalidateByPatternRejectsBadSyntax(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 2, Capacity: 8, ReplicationFactor: 1})
	c.Set("user:1", 1, 0)

	c.Set("order:xb", 2, 0)

	for _, pattern := range []string{"user:[", "a)|(b", "zzz)|(b"} {
		n, err := c.InvalidateByPattern(pattern)
		require.ErrorIs(t, err, ErrInvalidPattern, pattern)
		assert.Zero(t, n, pattern)
		assert.Equal(t, 2, c.Len(), "nothing removed on error: %s", pattern)
	}
}

// 4 shards, no replication, capacity 2: three keys on one shard force
// exactly one eviction there.
func TestCluster_EndToEnd(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Name: "e2e", Shards: 4, Capacity: 2, ReplicationFactor: 1})
	keys := keysOnShard(t, c, 1, 3)
	a, b, k3 := keys[0], keys[1], keys[2]

	c.Set(a, 1, 0)
	c.Set(b, 2, 0)
	c.Set(k3, 3, 0)

	st := c.Stats()
	assert.Equal(t, "e2e", st.Name)
	assert.Equal(t, 4, st.Shards)
	assert.Equal(t, 2, st.TotalSize)
	assert.Equal(t, uint64(1), st.TotalEvictions)
	assert.Equal(t, uint64(1), st.ShardStats[1].Evictions)

	_, ok := c.Get(a)
	assert.False(t, ok, "a was least recently used")

	// A fourth key elsewhere does not disturb shard 1.
	other := keysOnShard(t, c, 2, 1)[0]
	c.Set(other, 4, 0)
	assert.Equal(t, 3, c.Stats().TotalSize)
}

func TestCluster_StatsAggregate(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 4, Capacity: 8, ReplicationFactor: 1, Consistency: ConsistencyStrong})
	assert.Zero(t, c.Stats().HitRate)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a")
	c.Get("b")
	c.Get("a")
	c.Get("nope")

	st := c.Stats()
	assert.Equal(t, ConsistencyStrong, st.Consistency)
	assert.Equal(t, 2, st.TotalSize)
	assert.Equal(t, uint64(3), st.TotalHits)
	assert.Equal(t, uint64(1), st.TotalMisses)
	assert.InDelta(t, 0.75, st.HitRate, 1e-9)
	require.Len(t, st.ShardStats, 4)

	var hits uint64
	for i, ss := range st.ShardStats {
		assert.Equal(t, c.Shard(i).ID(), ss.ID)
		hits += ss.Hits
	}
	assert.Equal(t, st.TotalHits, hits)

	c.ResetStats()
	st = c.Stats()
	assert.Zero(t, st.TotalHits)
	assert.Zero(t, st.TotalMisses)
	assert.Equal(t, 2, st.TotalSize)
}

func TestCluster_TTLThroughCluster(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := newTestCluster(t, Options[int]{Shards: 2, Capacity: 4, ReplicationFactor: 2, Clock: clk})
	c.Set("x", 1, time.Second)
	clk.add(2 * time.Second)

	_, ok := c.Get("x")
	assert.False(t, ok)
	st := c.Stats()
	assert.Equal(t, uint64(1), st.TotalMisses)
	assert.Zero(t, st.TotalHits)
}

type recordingMetrics struct {
	NoopMetrics
	hits, misses, evicts, invalidated atomic.Int64
}

func (m *recordingMetrics) Hit(string)                { m.hits.Add(1) }
func (m *recordingMetrics) Miss(string)               { m.misses.Add(1) }
func (m *recordingMetrics) Evict(string, EvictReason) { m.evicts.Add(1) }
func (m *recordingMetrics) Invalidate(n int)          { m.invalidated.Add(int64(n)) }

func TestCluster_MetricsHooks(t *testing.T) {
	t.Parallel()

	m := &recordingMetrics{}
	c := newTestCluster(t, Options[int]{Shards: 1, Capacity: 1, ReplicationFactor: 1, Metrics: m})
	c.Set("a", 1, 0)
	c.Get("a")
	c.Get("b")
	c.Set("b", 2, 0) // evicts a
	_, err := c.InvalidateByPattern("b")
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.hits.Load())
	assert.Equal(t, int64(1), m.misses.Load())
	assert.Equal(t, int64(1), m.evicts.Load())
	assert.Equal(t, int64(1), m.invalidated.Load())
}

// Concurrent GetOrLoad calls for the same key run the Loader once.
func TestCluster_GetOrLoad_Singleflight(t *testing.T) {
	var calls atomic.Int64
	c := newTestCluster(t, Options[string]{
		Shards:            4,
		Capacity:          64,
		ReplicationFactor: 1,
		Loader: func(_ context.Context, k string) (string, error) {
			calls.Add(1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			<-start
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(1), calls.Load())

	v, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v:k", v)
	assert.Equal(t, int64(1), calls.Load(), "second call is a cache hit")
}

func TestCluster_GetOrLoad_Errors(t *testing.T) {
	t.Parallel()

	c := newTestCluster(t, Options[int]{Shards: 1, Capacity: 1, ReplicationFactor: 1})
	_, err := c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, ErrNoLoader)

	boom := errors.New("boom")
	c = newTestCluster(t, Options[int]{
		Shards: 1, Capacity: 1, ReplicationFactor: 1,
		Loader: func(context.Context, string) (int, error) { return 0, boom },
	})
	_, err = c.GetOrLoad(context.Background(), "k")
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len(), "failed loads are not cached")
}

func TestCluster_GetOrLoad_DefaultTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := newTestCluster(t, Options[int]{
		Shards: 1, Capacity: 2, ReplicationFactor: 1,
		Clock:      clk,
		DefaultTTL: time.Second,
		Loader:     func(context.Context, string) (int, error) { return 7, nil },
	})
	v, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	e, ok := c.Shard(0).Peek("k")
	require.True(t, ok)
	assert.Equal(t, time.Second, e.TTL)
}
