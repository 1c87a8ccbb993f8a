package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yndnr/kvwait/internal/infra/buildinfo"
	"github.com/yndnr/kvwait/internal/infra/confloader"
	"github.com/yndnr/kvwait/internal/infra/shutdown"
	"github.com/yndnr/kvwait/internal/server/admission"
	"github.com/yndnr/kvwait/internal/server/config"
	"github.com/yndnr/kvwait/internal/server/httpserver"
	"github.com/yndnr/kvwait/internal/server/kvserver"
	"github.com/yndnr/kvwait/internal/storage/memory"
	"github.com/yndnr/kvwait/internal/telemetry/logger"
	"github.com/yndnr/kvwait/internal/telemetry/metric"
)

// instance is one running server with its listeners and shutdown hooks.
type instance struct {
	log      logger.Logger
	store    *memory.Store
	gate     *admission.Controller
	srv      *kvserver.Server
	admin    *httpserver.Server
	shutdown *shutdown.Handler
	started  time.Time
}

// start builds every component from cfg and starts the listeners. When
// configPath is set the file is watched and log level changes are applied
// live.
func start(ctx context.Context, cfg *config.ServerConfig, configPath string, overrides map[string]any) (*instance, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting kvwait-server",
		append([]any{"version", info.Version, "commit", info.Commit, "config", configPath}, config.Sanitize(cfg)...)...)

	metrics := metric.NewRegistry()
	store := memory.New(memory.WithRecorder(metrics))
	metrics.MustRegister(metric.NewCollector(func() metric.StoreStats {
		s := store.Stats()
		return metric.StoreStats{Keys: s.Keys, Users: s.Users, WatchedKeys: s.WatchedKeys}
	}))

	gate, err := admission.New(cfg.Server.MaxSessions, admission.WithRecorder(metrics))
	if err != nil {
		return nil, err
	}

	srv := kvserver.New(&kvserver.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, store, gate, kvserver.WithLogger(log), kvserver.WithRecorder(metrics))

	inst := &instance{
		log:      log,
		store:    store,
		gate:     gate,
		srv:      srv,
		shutdown: shutdown.NewHandler(cfg.Server.ShutdownTimeout, log),
		started:  time.Now(),
	}

	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	inst.shutdown.OnShutdown("kvserver", srv.Shutdown)

	if cfg.Admin.Enabled {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Logger:    log,
			Metrics:   metrics.Handler(),
			Ready:     srv.Running,
			Status:    inst.status,
			AllowList: cfg.Admin.AllowList,
		})
		inst.admin = httpserver.New(cfg.Admin.Addr, router, log)
		if err := inst.admin.Start(); err != nil {
			_ = srv.Shutdown(context.Background())
			return nil, err
		}
		inst.shutdown.OnShutdown("admin", inst.admin.Shutdown)
	}

	if configPath != "" {
		if err := inst.watchConfig(configPath, overrides); err != nil {
			// Running without live reload is acceptable.
			log.Warn("config file watch disabled", "path", configPath, "error", err)
		}
	}

	log.Info("kvwait-server started",
		"addr", srv.Addr().String(),
		"max_sessions", gate.Max())
	return inst, nil
}

// wait blocks until SIGINT, SIGTERM or ctx ends, then stops everything.
func (i *instance) wait(ctx context.Context) error {
	if err := i.shutdown.Wait(ctx); err != nil {
		return err
	}
	i.log.Info("server stopped gracefully")
	return nil
}

func (i *instance) watchConfig(path string, overrides map[string]any) error {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(i.log))
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return err
	}

	w.OnChange(func(string) {
		i.reload(path, overrides)
	})
	w.StartAsync()
	i.shutdown.OnShutdown("config-watcher", func(context.Context) error {
		return w.Stop()
	})
	return nil
}

// reload applies the log level from the changed file. Other settings are
// read at startup only.
func (i *instance) reload(path string, overrides map[string]any) {
	cfg, err := config.Load(path, overrides)
	if err != nil {
		i.log.Warn("ignoring invalid configuration change", "path", path, "error", err)
		return
	}
	if cfg.Log.Level == logger.GetLevel() {
		return
	}
	logger.SetLevel(cfg.Log.Level)
	i.log.Info("log level changed", "level", cfg.Log.Level)
}

// status is the /status document.
func (i *instance) status() any {
	s := i.store.Stats()
	return map[string]any{
		"version":          buildinfo.Version,
		"uptime":           time.Since(i.started).Round(time.Second).String(),
		"max_sessions":     i.gate.Max(),
		"active_sessions":  i.gate.Active(),
		"waiting_sessions": i.gate.Waiting(),
		"connections":      i.srv.ActiveConnections(),
		"keys":             s.Keys,
		"users":            s.Users,
		"watched_keys":     s.WatchedKeys,
		"active_watchers":  s.ActiveWatchers,
	}
}
