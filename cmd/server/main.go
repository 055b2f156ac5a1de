package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/gridedit/internal/config"
	"github.com/JonMunkholm/gridedit/internal/core"
	"github.com/JonMunkholm/gridedit/internal/logging"
	_ "github.com/JonMunkholm/gridedit/internal/schema" // Register all entities
	"github.com/JonMunkholm/gridedit/internal/store"
	"github.com/JonMunkholm/gridedit/internal/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
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
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Open the record store
	st, err := store.Open(ctx, store.Options{
		Driver:          strings.ToLower(cfg.Store.Driver),
		URL:             cfg.Store.URL,
		MaxConns:        cfg.Store.MaxConns,
		MinConns:        cfg.Store.MinConns,
		MaxConnLifetime: cfg.Store.MaxConnLifetime,
		MaxConnIdleTime: cfg.Store.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create tables", "error", err)
		os.Exit(1)
	}
	if n, err := store.Seed(ctx, st, cfg.Store.SeedRows); err != nil {
		slog.Error("failed to seed demo records", "error", err)
		os.Exit(1)
	} else if n > 0 {
		slog.Info("demo records seeded", "records", n)
	}

	slog.Info("entities registered", "count", core.EntityCount())
	for _, def := range core.All() {
		slog.Debug("entity", "name", def.Info.Name, "columns", len(def.Columns))
	}

	service := core.NewService(st, core.ServiceOptions{
		Save: core.SaveOptions{
			CallTimeout: cfg.Save.CallTimeout,
			MaxInFlight: cfg.Save.MaxInFlight,
			Policy:      core.FailurePolicy(strings.ToLower(cfg.Save.FailurePolicy)),
		},
		PageSize:           cfg.Save.PageSize,
		MaxConcurrentSaves: cfg.Save.MaxConcurrentBatches,
		SaveWaitTime:       cfg.Save.MaxWaitTime,
		Registerer:         prometheus.DefaultRegisterer,
	})

	server := web.NewServer(service, web.Options{
		Server:   cfg.Server,
		Security: cfg.Security,
		Gatherer: prometheus.DefaultGatherer,
	})

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartControlReaper(jobCtx, core.ReaperConfig{
		IdleTimeout:   cfg.Save.ControlIdleTimeout,
		CheckInterval: cfg.Save.ReaperInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then let running save batches settle
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		status := service.SaveLimiterStatus()
		if status.Active > 0 {
			slog.Info("waiting for save batches to complete", "active", status.Active)
			if err := service.WaitForSaves(shutdownCtx); err != nil {
				slog.Warn("save batches did not complete in time", "error", err)
			} else {
				slog.Info("all save batches completed")
			}
		}

		service.Close()
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		cancelJobs()
		return
	}
	<-done
	slog.Info("server stopped")
}
