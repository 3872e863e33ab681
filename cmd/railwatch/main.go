// Railwatch - Train failure incident analytics.
// Copyright (c) 2025 The Railwatch Authors
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/railwatch/railwatch/internal/analytics"
	"github.com/railwatch/railwatch/internal/api"
	"github.com/railwatch/railwatch/internal/bus"
	"github.com/railwatch/railwatch/internal/cache"
	"github.com/railwatch/railwatch/internal/domain"
	"github.com/railwatch/railwatch/internal/filter"
	"github.com/railwatch/railwatch/internal/loader"
	"github.com/railwatch/railwatch/internal/predict"
	"github.com/railwatch/railwatch/internal/repository"
	"github.com/railwatch/railwatch/internal/scheduler"
	"github.com/railwatch/railwatch/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A missing .env is fine; the environment may be set by the runtime.
	_ = godotenv.Load()

	cfg, err := domain.LoadConfig(os.Getenv("RAILWATCH_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting railwatch",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"dataset", cfg.Dataset.Source,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tracing", cfg.Tracing.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	ds, err := loader.Load(ctx, cfg.Dataset, repo)
	if err != nil {
		slog.Error("failed to load dataset", "source", cfg.Dataset.Source, "error", err)
		os.Exit(1)
	}
	domains := ds.Domains()
	slog.Info("dataset loaded",
		"rows", ds.Len(),
		"fingerprint", ds.Fingerprint(),
		"lines", len(domains.Lines),
		"systems", len(domains.Systems),
		"vehicles", len(domains.Vehicles),
		"years", fmt.Sprintf("%d..%d", domains.Years.Min, domains.Years.Max),
	)

	engine, err := filter.NewEngine(256)
	if err != nil {
		slog.Error("failed to initialize filter engine", "error", err)
		os.Exit(1)
	}

	svc := analytics.NewService(ds, engine,
		analytics.WithCache(cacheImpl, cfg.Cache.ReportTTL),
		analytics.WithEventBus(busImpl),
	)

	// The dashboard still serves analytics without a model.
	var predictions *predict.Service
	model, err := predict.Load(cfg.Model.ArtifactPath)
	if err != nil {
		slog.Warn("prediction disabled", "artifact", cfg.Model.ArtifactPath, "error", err)
	} else {
		predictions = predict.NewService(model, busImpl, repo)
		info := model.Describe()
		slog.Info("model loaded", "name", info.Name, "version", info.Version, "trees", info.Trees)
	}

	asyncWorker := worker.NewWorker(busImpl, repo)
	if err := asyncWorker.Start(worker.Config{}); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(cfg.Scheduler, repo, svc)
	if err := sched.Start(ctx); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if err := svc.Warm(ctx); err != nil {
		slog.Warn("initial report warm-up failed", "error", err)
	}

	srv := api.NewServer(cfg.Server, api.NewHandler(svc, predictions, repo, cacheImpl, busImpl, Version))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("railwatch is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	sched.Stop(shutdownCtx)

	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	slog.Info("railwatch shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |               RAILWATCH                   |")
	fmt.Println("  |     Train Failure Incident Analytics      |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /domains                      - Filter domains and year bounds")
	fmt.Println("    GET  /selection/default            - Default selection")
	fmt.Println("    POST /selection/validate           - Validate a selection")
	fmt.Println("    POST /selection/{dim}/select-all   - Select every value of a dimension")
	fmt.Println("    POST /selection/{dim}/clear        - Clear a dimension")
	fmt.Println("    POST /incidents/query              - Page through the filtered view")
	fmt.Println("    POST /reports                      - Every aggregate for a selection")
	fmt.Println("    POST /reports/{family}             - One aggregate family")
	fmt.Println("    POST /predict                      - Predict evacuation for an incident")
	fmt.Println("    GET  /predictions/{id}             - Get a recorded prediction")
	fmt.Println("    GET  /model                        - Model metadata")
	fmt.Println("    GET  /health                       - Health check")
	fmt.Println()
}
