package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/explainer"
	"folio/internal/history"
	"folio/internal/market"
	"folio/internal/observability"
	"folio/internal/pipeline"
	"folio/internal/server"
	"folio/internal/tasks"
)

func main() {
	// best effort; the environment wins over the file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	observability.Init(observability.LogConfig{Level: cfg.LogLevel, Verbose: cfg.LogVerbose})
	logger := observability.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		Environment: cfg.OTELEnvironment,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}

	analyzer, err := history.NewAnalyzer(cfg.DataDir)
	if err != nil {
		log.Fatalf("analyzer: %v", err)
	}

	store, err := cache.New(cfg)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}

	updater := pipeline.NewUpdater(analyzer, store, cfg)
	fetcher := market.NewFetcher(cfg.AssetBackendURL)
	gen := explainer.New(cfg)

	manager, err := tasks.NewManager(cfg.DataDir, updater)
	if err != nil {
		log.Fatalf("tasks: %v", err)
	}
	if err := manager.Register(); err != nil {
		log.Fatalf("register jobs: %v", err)
	}
	go manager.Start(ctx)

	srv := server.New(cfg, updater, fetcher, gen, store, manager)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "tracing shutdown failed", "error", err)
	}
}
