// Package cli provides common CLI initialization utilities and the
// carnotectl command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carnote/internal/backend"
	"carnote/internal/config"
	"carnote/internal/log"
	"carnote/internal/ports"
	"carnote/internal/services"
)

// SetupLogger builds a text logger at level for component and installs it
// as the default logger.
func SetupLogger(level slog.Level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenRepository creates the configured backend. The returned close
// function is never nil.
func OpenRepository(ctx context.Context, logger *log.Logger, cfg *config.Config) (ports.Repository, func() error, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	return res.Repository, res.Close, nil
}

// ownedRepository closes through the backend cleanup, so a persisted
// memory backend is saved when a command finishes.
type ownedRepository struct {
	ports.Repository
	close func() error
}

func (r ownedRepository) Close() error { return r.close() }

// RepositoryOpener returns an App.Open that opens a fresh backend per call.
func RepositoryOpener(logger *log.Logger, cfg *config.Config) func(context.Context) (ports.Repository, error) {
	return func(ctx context.Context) (ports.Repository, error) {
		repo, closeFn, err := OpenRepository(ctx, logger, cfg)
		if err != nil {
			return nil, err
		}
		return ownedRepository{Repository: repo, close: closeFn}, nil
	}
}

// Thresholds returns the soon margins from cfg.
func Thresholds(cfg *config.Config) services.Thresholds {
	return services.Thresholds{SoonDays: cfg.SoonDays, SoonDistance: cfg.SoonDistance}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
