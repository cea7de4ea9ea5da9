// Package app assembles the service and owns its start and stop ordering.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pingwatch/internal/api"
	"pingwatch/internal/checker"
	"pingwatch/internal/config"
	"pingwatch/internal/monitor"
	"pingwatch/internal/probe"
	"pingwatch/internal/storage"
	"pingwatch/internal/storage/memory"
	"pingwatch/internal/storage/postgres"
	"pingwatch/internal/storage/sqlite"
	"pingwatch/internal/urlutil"
)

// App is the running service: store, checker and HTTP server.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   storage.Storer
	service *monitor.Service
	checker *checker.Checker
	server  *api.Server

	serverErrs <-chan error
}

// New opens the store and wires every component. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	validator := urlutil.NewValidator(cfg.Targets.AllowedDomains)
	prober := probe.NewHTTPProber(cfg.Probe.Timeout, logger)
	service := monitor.NewService(validator, prober, store, logger)

	chk := checker.New(service, checker.Options{
		Interval:    cfg.Sweep.Interval,
		Concurrency: cfg.Sweep.Concurrency,
		RunOnStart:  cfg.Sweep.RunOnStart,
	}, logger)

	router := api.NewRouter(service, cfg.Results.PushInterval, logger)
	server, err := api.NewServer(cfg.Server.Address, router, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		service: service,
		checker: chk,
		server:  server,
	}, nil
}

// OpenStore opens the store selected by the database driver.
func OpenStore(ctx context.Context, db config.DatabaseConfig, logger *slog.Logger) (storage.Storer, error) {
	logger.Info("initializing database connection...", slog.String("driver", db.Driver))
	switch db.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, db.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.New(ctx, db.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

// Service exposes the monitor service, mainly for tests.
func (a *App) Service() *monitor.Service { return a.service }

// Start starts the checker and the HTTP server.
func (a *App) Start() {
	a.checker.Start()
	a.serverErrs = a.server.Start()
	a.logger.Info("application is running...")
}

// Errors delivers a fatal HTTP server error. It is nil before Start.
func (a *App) Errors() <-chan error { return a.serverErrs }

// Stop shuts down in order: the checker first so no new probes start (the
// in-flight probe is allowed to finish), then the HTTP server, then the store.
func (a *App) Stop(ctx context.Context) error {
	a.checker.Stop()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown error: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close error: %w", err))
	}
	return errors.Join(errs...)
}
