// Package main provides the aggregator/relayer entry point. It folds
// accumulated ledger events into one daily batched on-chain update.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mint-engine/internal/config"
	"github.com/mint-engine/internal/logging"
	"github.com/mint-engine/internal/relayer"
	"github.com/mint-engine/internal/storage"
)

func main() {
	fmt.Println("Mint Engine Relayer")
	log.Println("Relayer starting...")

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

	if cfg.Chain.RPCURL == "" {
		logger.Fatal("CHAIN_RPC_URL is required")
	}
	if cfg.Relayer.PrivateKey == "" {
		logger.Fatal("RELAYER_PRIVATE_KEY is required")
	}

	// Connect to Postgres
	logger.Info("Connecting to database...")
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the chain node
	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to chain node")
	}
	defer client.Close()

	submitter, err := relayer.NewEthSubmitter(ctx, client, cfg.Chain.ContractAddress, cfg.Relayer.PrivateKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create submitter")
	}

	ledgerRepo := storage.NewLedgerRepository(postgres)
	checkpointRepo := storage.NewCheckpointRepository(postgres)

	r := relayer.New(ledgerRepo, checkpointRepo, submitter, cfg.Relayer.SubmitTimeout, logger)

	if err := r.Start(ctx, cfg.Relayer.Schedule); err != nil {
		logger.WithError(err).Fatal("Failed to schedule relayer")
	}

	logger.WithField("schedule", cfg.Relayer.Schedule).Info("Relayer started successfully")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutdown signal received, stopping...")

	cancel()
	r.Stop()

	logger.Info("Relayer stopped")
}
