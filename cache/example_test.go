package cache_test

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IvanBrykalov/replcache/cache"
)

func ExampleCluster() {
	c := cache.MustNew(cache.Options[string]{
		Name:              "example",
		Shards:            4,
		Capacity:          128,
		ReplicationFactor: 2,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	c.Set("user:1", "alice", time.Hour)
	c.Set("user:2", "bob", time.Hour)
	c.Set("order:1", "book", 0)

	v, ok := c.Get("user:1")
	fmt.Println(v, ok)

	n, _ := c.InvalidateByPattern("user:.*")
	fmt.Println("removed copies:", n)
	fmt.Println("resident:", c.Stats().TotalSize)
	// Output:
	// alice true
	// removed copies: 4
	// resident: 2
}
