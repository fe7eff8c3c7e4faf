package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"carnote/internal/amqp"
	"carnote/internal/cli"
	apphttp "carnote/internal/http"
	"carnote/internal/log"
	"carnote/internal/ports"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.DefaultConfig().Level, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.SlogLevel(), log.ComponentApp)

	repo, closeRepo, err := cli.OpenRepository(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize repository", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeRepo()

	// Journal writes are announced to carnote-worker when a broker is configured
	var publisher ports.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPReminderQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - journal rows are mirrored by the periodic sweep only")
	}

	srv := apphttp.NewServer(":"+cfg.Port, repo, publisher, apphttp.Options{
		VehicleID:         cfg.VehicleID,
		Thresholds:        cli.Thresholds(cfg),
		MaintenanceTokens: cfg.MaintenanceTokens,
		UpcomingDays:      cfg.UpcomingWindowDays,
		Logger:            logger.WithComponent(log.ComponentHTTP),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting carnote server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldVehicleID, cfg.VehicleID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
