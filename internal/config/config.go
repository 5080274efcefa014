// Package config loads engine settings from a TOML file with one section per
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is one environment section of the config file.
type Config struct {
	Timezone string `toml:"timezone"`

	Storage Storage `toml:"storage"`
	Logging Logging `toml:"logging"`
	Stats   Stats   `toml:"stats"`
	Cache   Cache   `toml:"cache"`
}

// Storage selects and sizes the record store.
type Storage struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	// FallbackOnError switches to the memory store when the durable one
	// cannot be opened.
	FallbackOnError bool   `toml:"fallback_on_error"`
	MemoryMaxBytes  int    `toml:"memory_max_bytes"`
	SnapshotPath    string `toml:"snapshot_path"`
}

// Logging configures the engine logger. File enables a rotated log file.
type Logging struct {
	Level    string `toml:"level"`
	File     string `toml:"file"`
	ToStdout bool   `toml:"to_stdout"`
	JSON     bool   `toml:"json"`
}

// Stats tunes predictions and plateau detection.
type Stats struct {
	MaxPoints          int     `toml:"max_points"`
	PredictWindow      int     `toml:"predict_window"`
	MinSigma           float64 `toml:"min_sigma"`
	PlateauPoints      int     `toml:"plateau_points"`
	PlateauMinSpanDays int     `toml:"plateau_min_span_days"`
	PlateauThreshold   float64 `toml:"plateau_threshold"`
}

// PlateauMinSpan returns the minimum plateau window span.
func (s Stats) PlateauMinSpan() time.Duration {
	return time.Duration(s.PlateauMinSpanDays) * 24 * time.Hour
}

// Cache sizes the derivation cache.
type Cache struct {
	// SizeBytes of 0 disables the derivation cache.
	SizeBytes  int `toml:"size_bytes"`
	TTLSeconds int `toml:"ttl_seconds"`
}

// Defaults returns a config for a single-device sqlite install.
func Defaults() *Config {
	return &Config{
		Timezone: "Local",
		Storage: Storage{
			Driver:          DriverSQLite,
			DSN:             "fightlog.db",
			MaxOpenConns:    4,
			FallbackOnError: true,
			MemoryMaxBytes:  5 << 20,
		},
		Logging: Logging{
			Level:    "info",
			ToStdout: true,
		},
		Stats: Stats{
			MaxPoints:          365,
			MinSigma:           0.1,
			PlateauPoints:      4,
			PlateauMinSpanDays: 14,
			PlateauThreshold:   0.25,
		},
		Cache: Cache{
			SizeBytes:  8 << 20,
			TTLSeconds: 300,
		},
	}
}

// Toml is the layout of the config file.
type Toml struct {
	Development *Config
	Production  *Config
}

// Get returns the section for env: dev, development, prod or production.
func (t *Toml) Get(env string) (*Config, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return t.Development, nil
	case "prod", "production":
		return t.Production, nil
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
}

// Parse decodes data and returns the validated section for env. Keys missing
// from the section keep their Defaults value.
func Parse(env string, data []byte) (*Config, error) {
	t := Toml{Development: Defaults(), Production: Defaults()}
	md, err := toml.Decode(string(data), &t)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s config: %w", env, err)
	}
	return cfg, nil
}

// Load reads the file at path and parses the env section.
func Load(env, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(env, data)
}

// Validate checks the driver, sizes and statistic parameters.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for %s", c.Storage.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver))
	}
	if c.Storage.MemoryMaxBytes < 0 {
		errs = append(errs, errors.New("storage.memory_max_bytes must be >= 0"))
	}
	if c.Cache.SizeBytes < 0 || c.Cache.TTLSeconds < 0 {
		errs = append(errs, errors.New("cache sizes must be >= 0"))
	}
	if c.Stats.MaxPoints < 2 {
		errs = append(errs, errors.New("stats.max_points must be >= 2"))
	}
	if c.Stats.PredictWindow < 0 {
		errs = append(errs, errors.New("stats.predict_window must be >= 0"))
	}
	if c.Stats.MinSigma <= 0 {
		errs = append(errs, errors.New("stats.min_sigma must be > 0"))
	}
	if c.Stats.PlateauPoints < 2 {
		errs = append(errs, errors.New("stats.plateau_points must be >= 2"))
	}
	if c.Stats.PlateauMinSpanDays < 1 {
		errs = append(errs, errors.New("stats.plateau_min_span_days must be >= 1"))
	}
	if c.Stats.PlateauThreshold <= 0 || c.Stats.PlateauThreshold >= 1 {
		errs = append(errs, errors.New("stats.plateau_threshold must be within (0, 1)"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

// Location resolves Timezone. An empty value means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
