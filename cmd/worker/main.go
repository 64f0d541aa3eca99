// Package main provides the background worker entry point: the render
// worker pool plus the chain transfer watcher.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mint-engine/internal/config"
	"github.com/mint-engine/internal/job"
	"github.com/mint-engine/internal/ledger"
	"github.com/mint-engine/internal/logging"
	"github.com/mint-engine/internal/render"
	"github.com/mint-engine/internal/storage"
	"github.com/mint-engine/internal/types"
	"github.com/mint-engine/internal/watcher"
	"github.com/mint-engine/internal/worker"
)

func main() {
	fmt.Println("Mint Engine Worker")
	log.Println("Worker starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories and services
	jobRepo := storage.NewJobRepository(postgres, cfg.Worker.ClaimLease)
	ledgerRepo := storage.NewLedgerRepository(postgres)
	ledgerService := ledger.NewService(ledgerRepo, redis, logger)

	// Wire the render pipeline behind the dispatcher
	pipeline := render.NewHTTPPipeline(cfg.Worker.RenderServiceURL, cfg.Worker.RenderTimeout)
	dispatcher := job.NewDispatcher()
	dispatcher.Register(types.JobTypeRender, worker.NewRenderExecutor(pipeline))

	pool, err := worker.NewPool(jobRepo, dispatcher, &worker.Config{
		Workers:       cfg.Worker.Workers,
		PollInterval:  cfg.Worker.PollInterval,
		RenderTimeout: cfg.Worker.RenderTimeout,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create worker pool")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start worker pool")
	}

	// Start the chain watcher when a websocket endpoint is configured. The
	// worker binary stays useful without one: webhooks still feed the ledger.
	watcherDone := make(chan struct{})
	if cfg.Chain.WSURL != "" && cfg.Chain.ContractAddress != "" {
		if !common.IsHexAddress(cfg.Chain.ContractAddress) {
			logger.WithField("contract", cfg.Chain.ContractAddress).Fatal("Invalid contract address")
		}

		client, err := ethclient.DialContext(ctx, cfg.Chain.WSURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to chain node")
		}
		defer client.Close()

		w := watcher.New(client, common.HexToAddress(cfg.Chain.ContractAddress), ledgerService, logger)
		go func() {
			defer close(watcherDone)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Watcher stopped unexpectedly")
			}
		}()
		logger.WithField("contract", cfg.Chain.ContractAddress).Info("Chain watcher started")
	} else {
		close(watcherDone)
		logger.Warn("No websocket endpoint configured, chain watcher disabled")
	}

	logger.WithField("workers", cfg.Worker.Workers).Info("Worker started successfully")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutdown signal received, stopping...")

	cancel()
	pool.Stop()
	<-watcherDone

	logger.Info("Worker stopped")
}
