package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"liturgyd/internal/config"
	appLog "liturgyd/internal/log"
	"liturgyd/internal/notify"
	"liturgyd/internal/propagate"
	"liturgyd/internal/store"
	"liturgyd/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath  string
	listen      string
	memoryStore bool
	debug       bool
}

// sweepCron drives the stale-viewer backstop sweep.
const sweepCron = "*/10 * * * *"

func main() {
	appLog.Info("liturgyd starting", "version", "0.1.0")

	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"store_table", conf.Store.Table,
		"refresh", conf.RefreshCron,
		"heartbeat_seconds", conf.HeartbeatSeconds,
		"viewer_max_age_minutes", conf.ViewerMaxAgeMinutes,
		"memory_store", flags.memoryStore,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	var st store.Store
	if flags.memoryStore || conf.Store.Token == "" {
		if !flags.memoryStore {
			appLog.Info("no store token configured, falling back to in-memory store")
		}
		st = store.NewMemory()
	} else {
		st = store.NewAirtable(conf.Store)
	}

	hub := propagate.NewHub()
	server := web.NewServer(conf, st, hub, notify.Log{})

	// Periodic schedules: the cache refresh is the server half of the
	// poll/push duality (viewers converge even if no push ever lands),
	// and the sweep bounds registry growth from silent disconnects.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		server.InvalidateViews()
		appLog.Debug("periodic refresh: view cache invalidated")
	}); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	maxAge := time.Duration(conf.ViewerMaxAgeMinutes) * time.Minute
	if _, err := scheduler.AddFunc(sweepCron, func() {
		hub.SweepStale(maxAge)
	}); err != nil {
		appLog.Error("invalid sweep cron expression", err, "sweep", sweepCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpSrv := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("graceful shutdown failed", err)
	}

	appLog.Info("liturgyd exiting")
	appLog.Sync()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/liturgyd/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.memoryStore, "memory-store", false, "Use an in-memory record store (development only)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
