// SPDX-License-Identifier: MIT

// Command daemon runs the zaptv channel viewer service: it loads an IPTV
// playlist, serves the catalog and playback API, and keeps preferences and
// guide data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/zaptv/zaptv/internal/api"
	"github.com/zaptv/zaptv/internal/app"
	"github.com/zaptv/zaptv/internal/cache"
	"github.com/zaptv/zaptv/internal/config"
	"github.com/zaptv/zaptv/internal/fetch"
	"github.com/zaptv/zaptv/internal/health"
	zlog "github.com/zaptv/zaptv/internal/log"
	"github.com/zaptv/zaptv/internal/playback"
	"github.com/zaptv/zaptv/internal/player"
	"github.com/zaptv/zaptv/internal/prefs"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("zaptv %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	zlog.Configure(zlog.Config{
		Service: "zaptv",
		Version: version,
	})
	logger := zlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).
			Str(zlog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("cannot load configuration")
	}
	if cfg.LogLevel != "" {
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	if err := run(ctx, cfg, *configPath, logger); err != nil {
		logger.Fatal().Err(err).
			Str(zlog.FieldEvent, "daemon.failed").
			Msg("daemon exited with error")
	}
}

func run(ctx context.Context, cfg config.Config, configPath string, logger zerolog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Cache: Redis when configured, in-process otherwise.
	var (
		bodyCache  cache.Cache
		redisCache *cache.RedisCache
	)
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, zlog.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisCache = rc
		bodyCache = rc
		defer rc.Close()
	} else {
		mem := cache.NewMemory(time.Minute)
		defer mem.Stop()
		bodyCache = mem
	}

	store, err := prefs.OpenBadgerStore(filepath.Join(cfg.DataDir, "prefs"))
	if err != nil {
		return fmt.Errorf("open preference store: %w", err)
	}
	defer store.Close()

	fetcher := fetch.New(fetch.Options{
		Client:   &http.Client{Timeout: cfg.FetchTimeout},
		Retries:  cfg.FetchRetries,
		Cache:    bodyCache,
		CacheTTL: cfg.CacheTTL,
	})

	proxy := playback.ProxyPolicy{}
	if cfg.Playback.ProxyEnabled {
		proxy = playback.DefaultProxyPolicy()
		if len(cfg.Playback.ProxyEndpoints) > 0 {
			proxy.Endpoints = cfg.Playback.ProxyEndpoints
		}
	}

	svc := app.New(app.Options{
		Fetcher:        fetcher,
		Store:          store,
		Player:         player.NewProbe(player.Options{}),
		LoadingTimeout: cfg.Playback.LoadingTimeout,
		ErrorTimeout:   cfg.Playback.ErrorTimeout,
		Proxy:          proxy,
	})
	defer svc.Stop()

	loadInitialPlaylist(ctx, cfg, svc, logger)

	if cfg.XMLTVPath != "" {
		if err := svc.LoadGuide(cfg.XMLTVPath); err != nil {
			logger.Warn().Err(err).
				Str(zlog.FieldEvent, "daemon.guide_load_failed").
				Str("path", cfg.XMLTVPath).
				Msg("starting without program guide")
		}
	}

	hm := health.NewManager(version)
	hm.Register(health.NewCatalogChecker(svc))
	hm.Register(health.NewPingChecker("prefs", store))
	if redisCache != nil {
		hm.Register(health.NewPingChecker("redis", redisCache))
	}

	server := api.NewServer(svc, api.Options{
		RateLimit: cfg.RateLimit,
		Health:    hm,
	}).HTTPServer(cfg.Listen)

	holder := config.NewHolder(cfg, configPath)

	g, ctx := errgroup.WithContext(ctx)

	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).
			Str(zlog.FieldEvent, "config.watcher_start_failed").
			Msg("config watcher unavailable")
	}
	defer holder.Stop()

	if cfg.PlaylistPath != "" {
		g.Go(func() error {
			return watchPlaylistFile(ctx, cfg.PlaylistPath, svc, logger)
		})
	}

	// SIGHUP reloads the playlist without restarting.
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				logger.Info().
					Str(zlog.FieldEvent, "daemon.reload_signal").
					Msg("reloading playlist on SIGHUP")
				if _, err := svc.Reload(context.Background()); err != nil {
					logger.Warn().Err(err).
						Str(zlog.FieldEvent, "daemon.reload_failed").
						Msg("playlist reload failed")
				}
			}
		}
	})

	g.Go(func() error {
		logger.Info().
			Str(zlog.FieldEvent, "daemon.listening").
			Str("addr", cfg.Listen).
			Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().
			Str(zlog.FieldEvent, "daemon.shutdown").
			Msg("draining connections")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// watchPlaylistFile reloads the catalog when the local playlist file changes.
// Edits are debounced because editors fire several events per save.
func watchPlaylistFile(ctx context.Context, path string, svc *app.Service, logger zerolog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn().Err(err).
			Str(zlog.FieldEvent, "daemon.playlist_watch_failed").
			Msg("playlist file watch unavailable")
		return nil
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warn().Err(err).
			Str(zlog.FieldEvent, "daemon.playlist_watch_failed").
			Str("path", path).
			Msg("playlist file watch unavailable")
		return nil
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				n, err := svc.LoadFromFile(path)
				if err != nil {
					logger.Warn().Err(err).
						Str(zlog.FieldEvent, "daemon.playlist_reload_failed").
						Str("path", path).
						Msg("keeping previous catalog")
					return
				}
				logger.Info().
					Str(zlog.FieldEvent, "daemon.playlist_reloaded").
					Int(zlog.FieldChannelCount, n).
					Msg("playlist file changed, catalog reloaded")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).
				Str(zlog.FieldEvent, "daemon.playlist_watch_error").
				Msg("playlist watch error")
		}
	}
}

func loadInitialPlaylist(ctx context.Context, cfg config.Config, svc *app.Service, logger zerolog.Logger) {
	var (
		n   int
		err error
	)
	switch {
	case cfg.PlaylistPath != "":
		n, err = svc.LoadFromFile(cfg.PlaylistPath)
	case cfg.PlaylistURL != "":
		n, err = svc.LoadFromURL(ctx, cfg.PlaylistURL)
	default:
		logger.Info().
			Str(zlog.FieldEvent, "daemon.no_playlist").
			Msg("no playlist configured, waiting for API load")
		return
	}
	if err != nil {
		logger.Warn().Err(err).
			Str(zlog.FieldEvent, "daemon.playlist_load_failed").
			Msg("starting with empty catalog")
		return
	}
	logger.Info().
		Str(zlog.FieldEvent, "daemon.playlist_loaded").
		Int(zlog.FieldChannelCount, n).
		Msg("initial playlist loaded")
}
