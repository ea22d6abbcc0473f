// Package prom exports cache.Metrics signals as Prometheus collectors.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/replcache/cache"
)

// Adapter implements cache.Metrics with per-shard Prometheus counters and
// gauges. Safe for concurrent use; all Prometheus metric types are
// goroutine-safe.
type Adapter struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	evicts      *prometheus.CounterVec
	size        *prometheus.GaugeVec
	invalidated prometheus.Counter
}

// New constructs and registers a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil),
//     e.g. prometheus.Labels{"cluster": name}
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}
	}
	a := &Adapter{
		hits:   prometheus.NewCounterVec(opts("hits_total", "Cache hits per shard"), []string{"shard"}),
		misses: prometheus.NewCounterVec(opts("misses_total", "Cache misses per shard"), []string{"shard"}),
		evicts: prometheus.NewCounterVec(
			opts("evictions_total", "Cache evictions per shard by reason"),
			[]string{"shard", "reason"},
		),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Resident entries per shard",
			ConstLabels: constLabels,
		}, []string{"shard"}),
		invalidated: prometheus.NewCounter(opts("invalidations_total", "Entries removed by pattern invalidation")),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.size, a.invalidated)
	return a
}

// Hit increments the hit counter of shard.
func (a *Adapter) Hit(shard string) { a.hits.WithLabelValues(shard).Inc() }

// Miss increments the miss counter of shard.
func (a *Adapter) Miss(shard string) { a.misses.WithLabelValues(shard).Inc() }

// Evict increments the eviction counter of shard with a reason label
// ("capacity" or "ttl").
func (a *Adapter) Evict(shard string, r cache.EvictReason) {
	a.evicts.WithLabelValues(shard, r.String()).Inc()
}

// Size sets the resident-entry gauge of shard.
func (a *Adapter) Size(shard string, entries int) {
	a.size.WithLabelValues(shard).Set(float64(entries))
}

// Invalidate adds the number of entries removed by one pattern invalidation.
func (a *Adapter) Invalidate(removed int) { a.invalidated.Add(float64(removed)) }

var _ cache.Metrics = (*Adapter)(nil)
