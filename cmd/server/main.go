package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mcoot/gamenight/internal/api"
	"github.com/mcoot/gamenight/internal/config"
	"github.com/mcoot/gamenight/internal/factory"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create application factory
	app, err := factory.New(ctx, factory.Config{
		Server: cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()

	go app.RunMaintenance(ctx)

	// Create server
	serverConfig := api.DefaultServerConfig().CoverBatches(app.FanoutService.BatchTimeout())
	serverConfig.Addr = cfg.Addr()
	server := api.NewServer(app.Router(), serverConfig, logger)

	// Start receiving updates
	switch cfg.UpdateMode {
	case config.UpdateModeWebhook:
		if err := app.Telegram.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			logger.Error("failed to register webhook", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("webhook registered", slog.String("url", cfg.WebhookURL))
	default:
		// getUpdates is refused while a webhook is set
		if err := app.Telegram.DeleteWebhook(ctx); err != nil {
			logger.Warn("could not delete webhook", slog.String("error", err.Error()))
		}
		go app.Telegram.Poll(ctx, app.Dispatcher)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("update_mode", cfg.UpdateMode),
		slog.String("ledger", cfg.LedgerBackend),
		slog.String("conversations", cfg.ConversationBackend),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}
