package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"carnote/internal/cli"
	"carnote/internal/config"
	"carnote/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "carnotectl:", err)
		os.Exit(1)
	}
	// keep stdout for command output
	logger := log.New(log.Config{Level: max(cfg.SlogLevel(), slog.LevelWarn), Component: log.ComponentCLI, Output: os.Stderr})
	log.SetDefault(logger)

	app := &cli.App{
		Config: cfg,
		Open:   cli.RepositoryOpener(logger, cfg),
	}
	if err := cli.NewRootCommand(app).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "carnotectl:", err)
		os.Exit(1)
	}
}
