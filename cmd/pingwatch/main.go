package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pingwatch/internal/app"
	"pingwatch/internal/config"
	"pingwatch/internal/logger"
)

func main() {
	// main only parses flags; run owns startup and graceful shutdown so its
	// deferred cleanups execute before the process exits.
	configPath := flag.String("config", "", "path to configuration file (YAML); searched in ./config and . when empty")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration from the optional YAML file and the environment.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Source locations are only worth the noise in development.
	log := logger.New(cfg.Logging.Level, cfg.Server.Environment == config.EnvDev, cfg.Server.Environment)

	// Cancelled on SIGINT or SIGTERM; this drives graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Open the store and wire the checker and HTTP server.
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	// Start sweeping and serving.
	application.Start()

	// Block until a signal arrives or the HTTP server dies.
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, starting graceful shutdown...")
	case err := <-application.Errors():
		if err != nil {
			log.Error("http server failed", slog.Any("err", err))
		}
	}

	// --- Graceful shutdown ---
	// Sweeps stop first (the in-flight probe finishes), then the server
	// drains requests within the grace period, then the store closes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()

	if err := application.Stop(shutdownCtx); err != nil {
		return err
	}
	log.Info("application shut down gracefully")
	return nil
}
