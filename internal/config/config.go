// Discoveryd - Art Discovery Feed and Preference Engine
// Copyright 2026 Kaleidorium
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kaleidorium/discoveryd

// Package config defines discoveryd configuration and its layered loading.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for discoveryd.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Engine   EngineConfig   `koanf:"engine"`
	Delegate DelegateConfig `koanf:"delegate"`
	Search   SearchConfig   `koanf:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// Timeout is the per-request read/write timeout.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs is the per-second request budget for mutating routes.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitBurst is the burst allowance for the rate limiter.
	RateLimitBurst int `koanf:"rate_limit_burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings for the artwork catalog and the
// durable preference store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" for in-memory.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory cap, e.g. "1GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SessionConfig holds discovery-session persistence settings.
type SessionConfig struct {
	// StorePath is the Badger directory for session records.
	StorePath string `koanf:"store_path"`

	// InMemory runs Badger without disk persistence (tests, ephemeral runs).
	InMemory bool `koanf:"in_memory"`

	// MaxAge is the staleness cutoff for restored sessions.
	MaxAge time.Duration `koanf:"max_age"`

	// SaveDebounce is the coalescing window for debounced session saves.
	SaveDebounce time.Duration `koanf:"save_debounce"`

	// GCInterval is how often Badger value-log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// EngineConfig holds scoring and ranking parameters.
type EngineConfig struct {
	// Multipliers are the per-category score multipliers.
	Multipliers CategoryMultipliers `koanf:"multipliers"`

	// AddWeight, LikeWeight and DislikeWeight are the per-action deltas
	// applied to preference category maps.
	AddWeight     float64 `koanf:"add_weight"`
	LikeWeight    float64 `koanf:"like_weight"`
	DislikeWeight float64 `koanf:"dislike_weight"`

	// JitterThreshold is the score delta under which ranking ties are
	// broken by random jitter.
	JitterThreshold float64 `koanf:"jitter_threshold"`

	// PriceBucketSize groups prices into buckets of this size.
	PriceBucketSize float64 `koanf:"price_bucket_size"`

	// CountViews increments the interaction counter for pure view events.
	CountViews bool `koanf:"count_views"`

	// Seed seeds the ranking RNG; 0 uses a fixed default for determinism.
	Seed int64 `koanf:"seed"`
}

// CategoryMultipliers are the fixed per-category score multipliers.
type CategoryMultipliers struct {
	Artist  float64 `koanf:"artist"`
	Genre   float64 `koanf:"genre"`
	Style   float64 `koanf:"style"`
	Subject float64 `koanf:"subject"`
	Colour  float64 `koanf:"colour"`
	Price   float64 `koanf:"price"`
}

// DelegateConfig holds the delegated-ranking collaborator settings.
type DelegateConfig struct {
	// Enabled turns delegated ranking on for identified viewers.
	Enabled bool `koanf:"enabled"`

	// BaseURL is the OpenAI-compatible endpoint. Empty uses the default.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates against the ranking endpoint.
	APIKey string `koanf:"api_key"`

	// Model is the model name used for ranking.
	Model string `koanf:"model"`

	// Timeout bounds a single delegated ranking call. Expiry is treated
	// as a delegate failure and triggers local fallback.
	Timeout time.Duration `koanf:"timeout"`
}

// SearchConfig holds the text-search collaborator settings.
type SearchConfig struct {
	// Enabled turns external search augmentation on.
	Enabled bool `koanf:"enabled"`

	// URL is the search endpoint; the term is passed as the q parameter.
	URL string `koanf:"url"`

	// Timeout bounds a single search call.
	Timeout time.Duration `koanf:"timeout"`
}

// defaultConfig returns a Config with all defaults applied.
// The engine constants mirror the production tuning of the discovery feed.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3861,
			Timeout:        30 * time.Second,
			RateLimitReqs:  50,
			RateLimitBurst: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Path:      "/data/discoveryd.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Session: SessionConfig{
			StorePath:    "/data/sessions",
			InMemory:     false,
			MaxAge:       24 * time.Hour,
			SaveDebounce: 500 * time.Millisecond,
			GCInterval:   10 * time.Minute,
		},
		Engine: EngineConfig{
			Multipliers: CategoryMultipliers{
				Artist:  2.5,
				Genre:   2.0,
				Style:   2.0,
				Subject: 1.5,
				Colour:  1.0,
				Price:   0.8,
			},
			AddWeight:       2.0,
			LikeWeight:      0.6,
			DislikeWeight:   -0.8,
			JitterThreshold: 0.2,
			PriceBucketSize: 1000,
			CountViews:      false,
			Seed:            0,
		},
		Delegate: DelegateConfig{
			Enabled: false,
			BaseURL: "",
			APIKey:  "",
			Model:   "gpt-4-turbo-preview",
			Timeout: 8 * time.Second,
		},
		Search: SearchConfig{
			Enabled: false,
			URL:     "",
			Timeout: 5 * time.Second,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session.max_age must be positive")
	}
	if c.Session.SaveDebounce < 0 {
		return fmt.Errorf("session.save_debounce must not be negative")
	}
	if c.Engine.PriceBucketSize <= 0 {
		return fmt.Errorf("engine.price_bucket_size must be positive")
	}
	if c.Engine.JitterThreshold < 0 {
		return fmt.Errorf("engine.jitter_threshold must not be negative")
	}
	m := c.Engine.Multipliers
	if m.Artist <= 0 || m.Genre <= 0 || m.Style <= 0 || m.Subject <= 0 || m.Colour <= 0 || m.Price <= 0 {
		return fmt.Errorf("engine.multipliers must all be positive")
	}
	if c.Delegate.Enabled {
		if c.Delegate.APIKey == "" {
			return fmt.Errorf("delegate.api_key is required when delegate.enabled")
		}
		if c.Delegate.Timeout <= 0 {
			return fmt.Errorf("delegate.timeout must be positive")
		}
	}
	if c.Search.Enabled && c.Search.URL == "" {
		return fmt.Errorf("search.url is required when search.enabled")
	}
	return nil
}
