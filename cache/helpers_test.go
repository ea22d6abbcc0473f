package cache

import (
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCluster builds a cluster with a discarded logger, failing the test
// on misconfiguration.
func newTestCluster[V any](t testing.TB, opt Options[V]) *Cluster[V] {
	t.Helper()
	if opt.Logger == nil {
		opt.Logger = quietLogger()
	}
	c, err := New(opt)
	require.NoError(t, err)
	return c
}

// keysOnShard returns n distinct keys whose primary shard is idx.
func keysOnShard[V any](t testing.TB, c *Cluster[V], idx, n int) []string {
	t.Helper()
	var out []string
	for i := 0; len(out) < n; i++ {
		require.Less(t, i, 1_000_000, "could not find keys for shard %d", idx)
		k := "k" + strconv.Itoa(i)
		if c.ShardFor(k) == idx {
			out = append(out, k)
		}
	}
	return out
}
