// Package admin serves the operational HTTP endpoints of a cluster:
// stats, stats reset, pattern invalidation, health and Prometheus metrics.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/replcache/cache"
)

// Cluster is the part of *cache.Cluster the admin endpoints use.
type Cluster interface {
	Stats() cache.ClusterStats
	ResetStats()
	InvalidateByPattern(pattern string) (int, error)
}

// NewRouter wires the admin endpoints. gatherer may be nil to use the
// default Prometheus registry; withPprof also mounts /debug/pprof/.
func NewRouter(c Cluster, gatherer prometheus.Gatherer, logger *slog.Logger, withPprof bool) *mux.Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{c: c, log: logger}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/stats/reset", h.resetStats).Methods(http.MethodPost)
	r.HandleFunc("/invalidate", h.invalidate).Methods(http.MethodPost).Queries("pattern", "{pattern}")
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if withPprof {
		p := r.PathPrefix("/debug/pprof").Subrouter()
		p.HandleFunc("/cmdline", pprof.Cmdline)
		p.HandleFunc("/profile", pprof.Profile)
		p.HandleFunc("/symbol", pprof.Symbol)
		p.HandleFunc("/trace", pprof.Trace)
		p.PathPrefix("/").HandlerFunc(pprof.Index)
	}
	return r
}

type handlers struct {
	c   Cluster
	log *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.c.Stats())
}

func (h *handlers) resetStats(w http.ResponseWriter, _ *http.Request) {
	h.c.ResetStats()
	h.log.Info("stats reset")
	w.WriteHeader(http.StatusNoContent)
}

// invalidate removes keys matching the start-anchored pattern query value.
// An empty pattern matches every key and clears all shards.
func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	pattern := mux.Vars(r)["pattern"]
	n, err := h.c.InvalidateByPattern(pattern)
	if errors.Is(err, cache.ErrInvalidPattern) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("invalidate failed", "pattern", pattern, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	h.log.Info("invalidated", "pattern", pattern, "removed", n)
	writeJSON(w, http.StatusOK, map[string]any{"pattern": pattern, "removed": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
