// SPDX-License-Identifier: MIT

// Package config loads daemon configuration from a YAML file with
// ZAPTV_-prefixed environment overrides.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	// Listen is the HTTP API bind address.
	Listen string `yaml:"listen"`
	// DataDir holds the preference store and other local state.
	DataDir string `yaml:"data_dir"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// PlaylistURL is fetched on startup and reload. PlaylistPath, when set,
	// takes precedence and is read from disk instead.
	PlaylistURL  string `yaml:"playlist_url"`
	PlaylistPath string `yaml:"playlist_path"`
	// XMLTVPath is an optional program guide document.
	XMLTVPath string `yaml:"xmltv_path"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRetries int           `yaml:"fetch_retries"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`

	// Redis enables the shared cache when Addr is set; empty means the
	// in-process memory cache.
	Redis RedisConfig `yaml:"redis"`

	Playback PlaybackConfig `yaml:"playback"`

	// RateLimit is requests per minute per client IP on the API, 0 disables.
	RateLimit int `yaml:"rate_limit"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PlaybackConfig struct {
	LoadingTimeout time.Duration `yaml:"loading_timeout"`
	ErrorTimeout   time.Duration `yaml:"error_timeout"`
	// ProxyEnabled routes plain-http streams through the CORS proxy.
	ProxyEnabled bool `yaml:"proxy_enabled"`
	// ProxyEndpoints overrides the built-in proxy endpoint list.
	ProxyEndpoints []string `yaml:"proxy_endpoints"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:       ":8080",
		DataDir:      "./data",
		LogLevel:     "info",
		FetchTimeout: 10 * time.Second,
		FetchRetries: 2,
		CacheTTL:     5 * time.Minute,
		Playback: PlaybackConfig{
			LoadingTimeout: 15 * time.Second,
			ErrorTimeout:   4 * time.Second,
			ProxyEnabled:   true,
		},
		RateLimit: 300,
	}
}

// Load reads path (optional), overlays environment variables and validates.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		buf, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = ParseString("ZAPTV_LISTEN", c.Listen)
	c.DataDir = ParseString("ZAPTV_DATA_DIR", c.DataDir)
	c.LogLevel = ParseString("ZAPTV_LOG_LEVEL", c.LogLevel)
	c.PlaylistURL = ParseString("ZAPTV_PLAYLIST_URL", c.PlaylistURL)
	c.PlaylistPath = ParseString("ZAPTV_PLAYLIST_PATH", c.PlaylistPath)
	c.XMLTVPath = ParseString("ZAPTV_XMLTV_PATH", c.XMLTVPath)
	c.FetchTimeout = ParseDuration("ZAPTV_FETCH_TIMEOUT", c.FetchTimeout)
	c.FetchRetries = ParseInt("ZAPTV_FETCH_RETRIES", c.FetchRetries)
	c.CacheTTL = ParseDuration("ZAPTV_CACHE_TTL", c.CacheTTL)
	c.Redis.Addr = ParseString("ZAPTV_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = ParseString("ZAPTV_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = ParseInt("ZAPTV_REDIS_DB", c.Redis.DB)
	c.Playback.LoadingTimeout = ParseDuration("ZAPTV_LOADING_TIMEOUT", c.Playback.LoadingTimeout)
	c.Playback.ErrorTimeout = ParseDuration("ZAPTV_ERROR_TIMEOUT", c.Playback.ErrorTimeout)
	c.Playback.ProxyEnabled = ParseBool("ZAPTV_PROXY_ENABLED", c.Playback.ProxyEnabled)
	c.RateLimit = ParseInt("ZAPTV_RATE_LIMIT", c.RateLimit)
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.PlaylistURL != "" {
		u, err := url.Parse(c.PlaylistURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("config: playlist_url %q is not an absolute URL", c.PlaylistURL)
		}
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("config: fetch_timeout must be positive")
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("config: fetch_retries must not be negative")
	}
	if c.Playback.LoadingTimeout <= 0 || c.Playback.ErrorTimeout <= 0 {
		return fmt.Errorf("config: playback timeouts must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	return nil
}
