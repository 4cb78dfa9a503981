// Command licensed is the license backend daemon. It stores license keys in
// SQLite and serves them over the websocket bridge and a small REST API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"licensebridge/internal/app"
	"licensebridge/internal/config"
	"licensebridge/internal/infrastructure"
)

func main() {
	if err := run(); err != nil {
		slog.Error("licensed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	return application.Run(ctx)
}
