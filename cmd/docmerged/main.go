package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/docmerge/internal/async"
	"github.com/joseph-ayodele/docmerge/internal/common"
	"github.com/joseph-ayodele/docmerge/internal/ingest"
	"github.com/joseph-ayodele/docmerge/internal/pipeline"
	repo "github.com/joseph-ayodele/docmerge/internal/repository"
	"github.com/joseph-ayodele/docmerge/internal/server"
	"github.com/joseph-ayodele/docmerge/internal/sweep"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.StatusDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create storage root", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Ledger is optional; the interfaces stay nil when it is off.
	var (
		ledger   pipeline.Ledger
		recorder ingest.JobRecorder
		reader   server.LedgerReader
	)
	if cfg.LedgerEnabled() {
		db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
		if err != nil {
			logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		jobs := repo.NewJobRepository(db, logger)
		ledger, recorder, reader = jobs, jobs, jobs
	} else {
		logger.Warn("DB_URL not set, job ledger disabled")
	}

	processor := pipeline.NewFromConfig(cfg, ledger, logger)
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithJobTimeout(cfg.Pipeline.JobTimeout),
	)
	ingestor := ingest.NewFSIngestor(cfg.Storage, queue, recorder, logger)

	sweeper := &sweep.Sweeper{
		Roots:    []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.StatusDir},
		MaxAge:   cfg.Sweep.MaxAge,
		Interval: cfg.Sweep.Interval,
		Logger:   logger,
	}
	go sweeper.Run(ctx)

	if cfg.Inbox.Dir != "" {
		if err := os.MkdirAll(cfg.Inbox.Dir, 0o755); err != nil {
			logger.Error("failed to create inbox", "dir", cfg.Inbox.Dir, "error", err)
			os.Exit(1)
		}
		go func() {
			wc := ingest.WatchConfig{Roots: []string{cfg.Inbox.Dir}, InitialScan: true, Debounce: cfg.Inbox.Debounce}
			if err := ingest.Watch(ctx, wc, ingestor, logger); err != nil {
				logger.Error("inbox watcher failed", "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	server.NewJobService(ingestor, cfg.Storage.StatusDir, reader, logger).Register(grpcServer)

	logger.Info("docmerged listening",
		"addr", cfg.Server.GRPCAddr,
		"workers", cfg.Pipeline.Workers,
		"ledger", cfg.LedgerEnabled(),
		"inbox", cfg.Inbox.Dir,
	)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	grpcServer.GracefulStop()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.JobTimeout)
	defer cancel()
	queue.Shutdown(drainCtx)
}
