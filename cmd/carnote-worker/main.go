package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carnote/internal/amqp"
	"carnote/internal/cli"
	"carnote/internal/log"
	"carnote/internal/services"
	gsheet "carnote/internal/sheets/google"
	"carnote/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.DefaultConfig().Level, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), log.ComponentWorker)

	logger.Info("Starting carnote-worker")

	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the sync worker")
		os.Exit(1)
	}

	repo, closeRepo, err := cli.OpenRepository(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize repository", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeRepo()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	processor := services.NewSyncProcessor(repo, sheetsClient, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	syncWorker := worker.NewSyncWorker(repo, processor, cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Sync processor stop failed", log.FieldError, err)
		}
	})

	// On startup, mirror any rows that were missed while the worker was down
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, "")
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on the periodic sweep", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			go func() {
				if err := amqpClient.ConsumeJournalSync(ctx, syncWorker.HandleSyncMessage); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", log.FieldError, err)
				}
			}()
			logger.Info("Consuming journal sync messages", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - relying on the periodic sweep", "interval", cfg.SyncInterval)
	}

	cli.WaitForShutdown(ctx, done)
}
