package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailscale.com/tsnet"

	"github.com/claude/mafwalk/internal/config"
	"github.com/claude/mafwalk/internal/health"
	"github.com/claude/mafwalk/internal/importer"
	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/server"
	"github.com/claude/mafwalk/internal/storage"
	"github.com/claude/mafwalk/internal/workout"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	migrateOnly := flag.Bool("migrate-only", false, "run postgres migrations and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	log.Info("MAF Walk starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *migrateOnly {
		if cfg.Storage.Driver != storage.DriverPostgres {
			log.Info("migrate-only: nothing to migrate", "driver", cfg.Storage.Driver)
			return
		}
		if err := storage.RunMigrations(cfg.Storage.DSN()); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrate-only: exiting")
		return
	}

	// Open storage
	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = backend.Close() }()
	log.Info("storage opened", "driver", cfg.Storage.Driver)

	store := storage.NewStore(backend, log)

	// Health platform
	platform, err := health.New(ctx, cfg.Health, log)
	if err != nil {
		log.Error("failed to create health platform", "error", err)
		os.Exit(1)
	}
	monitor := health.NewMonitor(platform, cfg.Health.PollInterval, log)
	log.Info("health platform ready", "mode", platform.Mode(), "available", platform.IsAvailable(), "authorized", platform.IsAuthorized())

	stride, width := cfg.Policy.StrideLengthKm, cfg.Policy.ZoneWidthBPM
	recorder := workout.NewRecorder(store, platform, monitor, log, workout.WithPolicy(stride, width))
	imp := importer.New(store, log, false, importer.WithPolicy(stride, width))

	srv := server.New(server.Deps{
		Store:    store,
		Platform: platform,
		Monitor:  monitor,
		Recorder: recorder,
		Importer: imp,
		StrideKm: stride,
		Policy:   maf.Policy{ZoneWidth: width},
	}, cfg.Auth.APIKey, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "local (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	if session, err := recorder.Stop(shutdownCtx); err == nil {
		log.Info("saved unfinished workout", "id", session.ID, "duration_min", session.Duration)
	} else if !errors.Is(err, workout.ErrNoWorkout) {
		log.Error("saving unfinished workout", "error", err)
	}
	monitor.StopAll()
	log.Info("server stopped")
}
