// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zaptv.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Playback.LoadingTimeout != 15*time.Second || cfg.Playback.ErrorTimeout != 4*time.Second {
		t.Fatalf("playback timeouts = %+v", cfg.Playback)
	}
	if !cfg.Playback.ProxyEnabled {
		t.Fatal("proxy disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
playlist_url: "http://example.com/list.m3u"
cache_ttl: 1m
playback:
  loading_timeout: 20s
  proxy_enabled: false
redis:
  addr: "localhost:6379"
  db: 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.PlaylistURL != "http://example.com/list.m3u" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("cache_ttl = %v", cfg.CacheTTL)
	}
	if cfg.Playback.LoadingTimeout != 20*time.Second {
		t.Fatalf("loading_timeout = %v", cfg.Playback.LoadingTimeout)
	}
	if cfg.Playback.ProxyEnabled {
		t.Fatal("proxy_enabled not applied")
	}
	// Fields the file omits keep their defaults.
	if cfg.Playback.ErrorTimeout != 4*time.Second {
		t.Fatalf("error_timeout = %v", cfg.Playback.ErrorTimeout)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "listne: \":9090\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("typo field accepted")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n")
	t.Setenv("ZAPTV_LISTEN", ":7070")
	t.Setenv("ZAPTV_FETCH_TIMEOUT", "3s")
	t.Setenv("ZAPTV_PROXY_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7070" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.FetchTimeout != 3*time.Second {
		t.Fatalf("fetch_timeout = %v", cfg.FetchTimeout)
	}
	if cfg.Playback.ProxyEnabled {
		t.Fatal("env proxy override ignored")
	}
}

func TestEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ZAPTV_FETCH_RETRIES", "many")
	t.Setenv("ZAPTV_CACHE_TTL", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FetchRetries != 2 {
		t.Fatalf("fetch_retries = %d", cfg.FetchRetries)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("cache_ttl = %v", cfg.CacheTTL)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"relative playlist url", func(c *Config) { c.PlaylistURL = "list.m3u" }},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeout = 0 }},
		{"negative retries", func(c *Config) { c.FetchRetries = -1 }},
		{"zero loading timeout", func(c *Config) { c.Playback.LoadingTimeout = 0 }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}

	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestHolderReload(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHolder(cfg, path)

	updates := make(chan Config, 1)
	h.RegisterListener(updates)

	if err := os.WriteFile(path, []byte("listen: \":6060\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := h.Get().Listen; got != ":6060" {
		t.Fatalf("listen after reload = %q", got)
	}
	select {
	case got := <-updates:
		if got.Listen != ":6060" {
			t.Fatalf("listener saw %q", got.Listen)
		}
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolderReloadKeepsOldConfigOnError(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHolder(cfg, path)

	if err := os.WriteFile(path, []byte("listen: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(context.Background()); err == nil {
		t.Fatal("invalid reload accepted")
	}
	if got := h.Get().Listen; got != ":9090" {
		t.Fatalf("listen after failed reload = %q", got)
	}
}

func TestHolderWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHolder(cfg, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.StartWatcher(ctx); err != nil {
		t.Fatal(err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("listen: \":6061\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.Get().Listen == ":6061" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher never applied the new config, listen = %q", h.Get().Listen)
}
