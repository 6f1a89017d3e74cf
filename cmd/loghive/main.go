package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/loghive/loghive/internal/core/config"
	"github.com/loghive/loghive/internal/core/storage/postgres"
	"github.com/loghive/loghive/internal/ingest"
	"github.com/loghive/loghive/internal/migrations"
	"github.com/loghive/loghive/internal/query"
	"github.com/loghive/loghive/internal/queue"
	"github.com/loghive/loghive/internal/server"
)

func main() {
	configPath := flag.String("config", "loghive.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	statsStore := postgres.NewStatsAdapter(dbAdapter.DB())
	auditStore := postgres.NewAuditAdapter(dbAdapter.DB())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the singleton stats row; a restart keeps accumulated counters.
	if err := statsStore.EnsureRow(ctx); err != nil {
		slog.Error("Failed to initialize stats row", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Queue (Redis)
	inbound, err := queue.NewRedisQueue(cfg.Queue.Addr, cfg.Queue.Stream)
	if err != nil {
		slog.Error("Failed to initialize queue", "error", err)
		os.Exit(1)
	}
	defer inbound.Close()

	// 4. Initialize Ingestion
	engine := ingest.NewEngine(dbAdapter, statsStore, auditStore)
	coordinator := ingest.NewCoordinator(engine, inbound, cfg.Ingest.SubmitParallelism)
	pool := ingest.NewPool(inbound, engine, cfg.Ingest.WorkerCount, cfg.Queue.PopTimeoutDuration())

	ingestSvc := ingest.NewService(coordinator, cfg.Server.MaxBodySizeMB)
	querySvc := query.NewService(dbAdapter, statsStore)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), inbound, cfg.Server.Mode)
	ingestSvc.RegisterRoutes(srv.Engine)
	querySvc.RegisterRoutes(srv.Engine)

	// 6. Start worker pool in background
	poolDone := make(chan error, 1)
	go func() {
		poolDone <- pool.Run(ctx)
	}()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	// Workers finish their in-flight events before exiting.
	if err := <-poolDone; err != nil {
		slog.Error("Worker pool stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
