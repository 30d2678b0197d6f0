// Package config loads the TOML server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration. Every field has a working
// default; a missing config file means "run with defaults".
type Config struct {
	Server  Server  `toml:"server"`
	Limits  Limits  `toml:"limits"`
	Render  Render  `toml:"render"`
	Cache   Cache   `toml:"cache"`
	Store   Store   `toml:"store"`
	History History `toml:"history"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     duration `toml:"read_timeout"`
	WriteTimeout    duration `toml:"write_timeout"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// Limits caps attacker-influenceable resource use.
type Limits struct {
	MaxArchiveBytes   int64 `toml:"max_archive_bytes"`
	MaxMemberBytes    int64 `toml:"max_member_bytes"`
	MaxCommands       int   `toml:"max_commands"`
	MaxMacroSteps     int   `toml:"max_macro_steps"`
	MaxRegionVertices int   `toml:"max_region_vertices"`
	MaxCanvasPixels   int64 `toml:"max_canvas_pixels"`
	MaxPrimitives     int   `toml:"max_primitives"`
	Workers           int   `toml:"workers"`
}

// Render configures rasterization.
type Render struct {
	DPMM     float64 `toml:"dpmm"`
	MarginMM float64 `toml:"margin_mm"`
}

// Cache configures the render cache.
type Cache struct {
	// Dir is the file cache directory; empty disables caching.
	Dir string   `toml:"dir"`
	TTL duration `toml:"ttl"`
}

// Store configures the result store backend.
type Store struct {
	// Backend is "memory" or "redis".
	Backend       string   `toml:"backend"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           duration `toml:"ttl"`
}

// History configures the optional MongoDB conversion log.
type History struct {
	// MongoURI enables history recording when set.
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// duration wraps time.Duration so TOML accepts "30s" strings.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Value returns the duration, or fallback when unset.
func (d duration) Value(fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Limits: Limits{
			MaxArchiveBytes:   50 << 20,
			MaxMemberBytes:    20 << 20,
			MaxCommands:       500_000,
			MaxMacroSteps:     10_000,
			MaxRegionVertices: 100_000,
			MaxCanvasPixels:   64 << 20,
			MaxPrimitives:     200_000,
			Workers:           4,
		},
		Render: Render{DPMM: 40, MarginMM: 2},
		Store:  Store{Backend: "memory"},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "", "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Render.DPMM < 0 || c.Render.MarginMM < 0 {
		return fmt.Errorf("render settings must not be negative")
	}
	if c.Limits.Workers < 0 {
		return fmt.Errorf("limits.workers must not be negative")
	}
	return nil
}
