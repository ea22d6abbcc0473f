// Package config loads the YAML configuration of the replcache binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/replcache/cache"
)

// Config is the whole file.
type Config struct {
	Cluster struct {
		Name              string        `yaml:"name"`
		Shards            int           `yaml:"shards"`
		Capacity          int           `yaml:"capacity"`
		ReplicationFactor int           `yaml:"replication_factor"`
		Consistency       string        `yaml:"consistency"`       // "eventual" or "strong"
		PropagateDeletes  bool          `yaml:"propagate_deletes"` // fan Delete out to replicas
		DefaultTTL        time.Duration `yaml:"default_ttl"`
	} `yaml:"cluster"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.Cluster.Name = "replcache"
	c.Cluster.Shards = 4
	c.Cluster.Capacity = 10_000
	c.Cluster.ReplicationFactor = 2
	c.Cluster.Consistency = string(cache.ConsistencyEventual)
	c.Server.Addr = ":8080"
	c.Log.Level = "info"
	c.Log.Format = "text"
	return c
}

// Load reads a YAML file on top of Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path) // #nosec G304 -- path comes from a command-line flag
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses YAML from r on top of Default and validates the result.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the cluster section with the same rules as cache.New.
func (c Config) Validate() error {
	if err := c.CacheOptions(nil).Validate(); err != nil {
		return fmt.Errorf("config: cluster: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// CacheOptions converts the cluster section into cache.Options.
func (c Config) CacheOptions(logger *slog.Logger) cache.Options[[]byte] {
	return cache.Options[[]byte]{
		Name:              c.Cluster.Name,
		Shards:            c.Cluster.Shards,
		Capacity:          c.Cluster.Capacity,
		ReplicationFactor: c.Cluster.ReplicationFactor,
		Consistency:       cache.ConsistencyLevel(strings.ToLower(c.Cluster.Consistency)),
		PropagateDeletes:  c.Cluster.PropagateDeletes,
		DefaultTTL:        c.Cluster.DefaultTTL,
		Logger:            logger,
	}
}

// Logger builds a slog.Logger writing to w according to the log section.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if strings.ToLower(c.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
