// Command bench runs a synthetic workload against a replicated cluster and
// serves the admin endpoints (/stats, /invalidate, /metrics, optional pprof).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/replcache/cache"
	"github.com/IvanBrykalov/replcache/internal/admin"
	"github.com/IvanBrykalov/replcache/internal/config"
	"github.com/IvanBrykalov/replcache/internal/util"
	pmet "github.com/IvanBrykalov/replcache/metrics/prom"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(1)
	}
}

func run() error {
	// ---- Flags ----
	var (
		cfgPath  = flag.String("config", "", "YAML config file (optional)")
		shards   = flag.Int("shards", 0, "number of shards (0 = config value)")
		capacity = flag.Int("cap", 0, "per-shard capacity in entries (0 = config value)")
		rf       = flag.Int("rf", 0, "replication factor (0 = config value)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		ttl      = flag.Duration("ttl", 0, "TTL for written entries (0 = none)")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", -1, "preload entries (-1 = half the total capacity)")

		serve     = flag.Bool("serve", false, "keep serving admin endpoints after the run until interrupted")
		withPprof = flag.Bool("pprof", false, "mount /debug/pprof on the admin server")
	)
	flag.Parse()

	if err := checkWorkload(*keys, *zipfS, *zipfV); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *shards > 0 {
		cfg.Cluster.Shards = *shards
	} else if *cfgPath == "" {
		cfg.Cluster.Shards = util.ReasonableShardCount()
	}
	if *capacity > 0 {
		cfg.Cluster.Capacity = *capacity
	}
	if *rf > 0 {
		cfg.Cluster.ReplicationFactor = *rf
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := cfg.Logger(os.Stderr)

	// ---- Build cluster ----
	reg := prometheus.NewRegistry()
	opt := cfg.CacheOptions(logger)
	opt.Metrics = pmet.New(reg, "replcache", "bench", prometheus.Labels{"cluster": cfg.Cluster.Name})
	c, err := cache.New(opt)
	if err != nil {
		return err
	}

	// ---- Admin server ----
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           admin.NewRouter(c, reg, logger, *withPprof),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("admin: serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin: server stopped", "error", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	// ---- Preload ----
	pl := *preload
	if pl < 0 {
		pl = cfg.Cluster.Shards * cfg.Cluster.Capacity / 2
	}
	items := make(map[string][]byte, pl)
	for i := 0; i < pl; i++ {
		items["k:"+strconv.Itoa(i)] = []byte("v" + strconv.Itoa(i))
	}
	loaded := c.BulkSet(items, *ttl)
	logger.Info("preloaded", "requested", pl, "stored", loaded)

	// ---- Load generation ----
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	ttlVal := *ttl

	var reads, writes, hits, total atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// rand.Rand is not goroutine-safe: one source and Zipf per worker.
			r := rand.New(rand.NewSource(*seed + int64(id)*9973))
			zipf := rand.NewZipf(r, *zipfS, *zipfV, keysMax)
			key := func() string { return "k:" + strconv.FormatUint(zipf.Uint64(), 10) }

			for ctx.Err() == nil {
				total.Add(1)
				if int(r.Int31n(100)) < readPctVal {
					reads.Add(1)
					if _, ok := c.Get(key()); ok {
						hits.Add(1)
					}
					continue
				}
				writes.Add(1)
				c.Set(key(), []byte("v"+strconv.Itoa(r.Int())), ttlVal)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	ops := total.Load()
	fmt.Printf("cluster=%s shards=%d cap=%d rf=%d consistency=%s workers=%d keys=%d dur=%v seed=%d\n",
		st.Name, st.Shards, cfg.Cluster.Capacity, st.ReplicationFactor, st.Consistency,
		workersN, *keys, elapsed, *seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  client-hits=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load(), hits.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%  evictions=%d  resident=%d\n",
		st.TotalHits, st.TotalMisses, st.HitRate*100, st.TotalEvictions, st.TotalSize)

	if !*serve {
		return nil
	}
	sig, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger.Info("admin: serving until interrupted", "addr", cfg.Server.Addr)
	<-sig.Done()
	return nil
}

// checkWorkload rejects flag values rand.NewZipf cannot serve: it returns
// nil for s <= 1 or v < 1, and a keyspace below 1 underflows imax.
func checkWorkload(keys int, s, v float64) error {
	if keys < 1 {
		return fmt.Errorf("-keys must be >= 1, got %d", keys)
	}
	if s <= 1 {
		return fmt.Errorf("-zipf_s must be > 1, got %g", s)
	}
	if v < 1 {
		return fmt.Errorf("-zipf_v must be >= 1, got %g", v)
	}
	return nil
}
