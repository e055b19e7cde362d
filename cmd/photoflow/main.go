package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shutterworks/photoflow/internal/catalog"
	"github.com/shutterworks/photoflow/internal/config"
	"github.com/shutterworks/photoflow/internal/history"
	"github.com/shutterworks/photoflow/internal/logging"
	"github.com/shutterworks/photoflow/internal/service"
	"github.com/shutterworks/photoflow/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"ops_max_concurrent", cfg.Ops.MaxConcurrent,
		"catalog_path", cfg.Catalog.Path,
		"history_path", cfg.History.Path,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Open the run history database
	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Error("failed to open history database", "error", err)
		os.Exit(1)
	}
	defer hist.Close()

	// Load the template catalog; a missing file means a first run
	store := catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.KeepBackups)
	snap, err := store.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load catalog", "error", err, "path", cfg.Catalog.Path)
			os.Exit(1)
		}
		slog.Info("no catalog file found, starting with an empty catalog",
			"path", cfg.Catalog.Path)
		snap = catalog.Snapshot{}
	} else {
		slog.Info("catalog loaded", "teams", len(snap.Teams), "global", len(snap.Global))
	}

	svc := service.New(service.Options{
		Config:   cfg,
		Catalog:  store,
		History:  hist,
		Snapshot: snap,
	})

	server := web.NewServer(svc, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Prune old runs in the background
	go hist.StartRetentionScheduler(jobCtx, history.RetentionConfig{
		MaxAge:        time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
		CheckInterval: cfg.History.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active operations to complete (with timeout)
		status := svc.LimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for operations to complete", "active", status.Active)
			if err := svc.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("operations did not complete in time", "error", err)
				svc.CancelAll()
			} else {
				slog.Info("all operations completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
