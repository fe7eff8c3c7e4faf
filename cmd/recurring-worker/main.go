package main

import (
	"context"
	"os"
	"time"

	"carnote/internal/amqp"
	"carnote/internal/cli"
	"carnote/internal/core"
	"carnote/internal/log"
	"carnote/internal/ports"
	"carnote/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.DefaultConfig().Level, log.ComponentRecurring)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), log.ComponentRecurring)

	logger.Info("Starting recurring-worker")

	repo, closeRepo, err := cli.OpenRepository(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize repository", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeRepo()

	// Posted expenses and reminders go out through AMQP when configured;
	// carnote-worker mirrors the expenses to Google Sheets
	var publisher ports.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without publishing", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - due maintenance is only logged")
	}

	journal := services.NewJournalService(repo, publisher, cfg.VehicleID)
	recurring := services.NewRecurringProcessor(repo, journal, cfg.VehicleID)
	reminders := services.NewReminderProcessor(
		services.NewMaintenanceService(repo, cfg.VehicleID, cli.Thresholds(cfg)),
		publisher,
		cfg.VehicleID,
	)

	tick := func(ctx context.Context) {
		today := core.Today()
		count, err := recurring.ProcessDue(ctx, today)
		if err != nil {
			logger.Error("Recurring processing failed", log.FieldError, err)
		} else {
			logger.Info("Recurring processing complete", "expenses_created", count)
		}
		if _, err := reminders.Run(ctx, today); err != nil {
			logger.Error("Reminder run failed", log.FieldError, err)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Recurring processor configured", "interval", cfg.RecurringInterval)
	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	// Run initial processing on startup
	tick(ctx)
	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Recurring-worker shutdown complete")
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}
