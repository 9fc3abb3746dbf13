package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/worksmart-portal/internal/app/crmsync"
	"github.com/magabrotheeeer/worksmart-portal/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting crm sync", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := crmsync.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize crm sync app", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("crm sync app stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("crm sync app stopped gracefully")
}
