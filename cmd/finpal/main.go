package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finpal/internal/amqp"
	"finpal/internal/api"
	"finpal/internal/config"
	"finpal/internal/core"
	apphttp "finpal/internal/http"
	applog "finpal/internal/log"
	"finpal/internal/profile"
	"finpal/internal/services"
	"finpal/internal/storage"
	"finpal/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// AMQP is optional: without it transactions still persist locally and
	// the worker drains them later.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, sync messages disabled", "error", err)
			amqpClient = nil
		}
	}

	backend := api.New(cfg.BackendBaseURL)

	clock := core.SystemClock()
	store := profile.New(clock)
	profileSvc := services.NewProfileService(store, repo, amqpClient, backend, clock)
	defer profileSvc.Close()

	if err := profileSvc.Restore(context.Background()); err != nil {
		logger.Error("Failed to restore persisted profile", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recurring transactions run here, not in the worker: the server's store
	// is the only writer of the profile scalars, so applying them anywhere
	// else would checkpoint stale state over live mutations.
	recurring := worker.NewRecurringProcessor(repo, profileSvc, clock)
	go func() {
		if err := recurring.Run(ctx, cfg.RecurringSchedule); err != nil && err != context.Canceled {
			logger.Error("Recurring processor stopped", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, profileSvc, clock, cfg.AnalyticsCacheTTL)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finpal server", "port", cfg.Port, "backend", cfg.BackendBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
