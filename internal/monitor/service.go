package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pingwatch/internal/models"
	"pingwatch/internal/probe"
	"pingwatch/internal/storage"
)

// ErrInvalidTarget is returned by Submit when the candidate is rejected by the validator.
var ErrInvalidTarget = errors.New("invalid target")

// TargetValidator decides whether a candidate string may be probed.
type TargetValidator interface {
	Check(candidate string) error
}

// Service ties validation, probing and persistence together. It is used by
// the HTTP handlers for submissions and reports, and by the checker for sweeps.
type Service struct {
	validator TargetValidator
	prober    probe.Prober
	store     storage.Storer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(validator TargetValidator, prober probe.Prober, store storage.Storer, logger *slog.Logger) *Service {
	return &Service{
		validator: validator,
		prober:    prober,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates candidate, probes it synchronously and records the outcome.
// A failed probe is recorded as a result and is not an error. Cancelling ctx
// does not abort the probe or the write; the probe timeout bounds both.
func (s *Service) Submit(ctx context.Context, candidate string) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.validator.Check(candidate); err != nil {
		s.logger.Info("rejected submission", slog.String("url", candidate), slog.String("reason", err.Error()))
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return s.Refresh(ctx, candidate)
}

// Refresh probes url and upserts the outcome. Only store faults are returned.
func (s *Service) Refresh(ctx context.Context, url string) error {
	outcome := s.prober.Probe(ctx, url)
	timestamp := s.now()

	if err := s.store.Upsert(ctx, url, outcome.ResponseTime(), timestamp); err != nil {
		s.logger.Error("failed to record probe result", slog.String("url", url), slog.Any("err", err))
		return err
	}

	if outcome.Succeeded {
		s.logger.Info("target reachable", slog.String("url", url), slog.Duration("elapsed", outcome.Elapsed))
	} else {
		s.logger.Warn("target unreachable", slog.String("url", url), slog.Any("err", outcome.Err))
	}
	return nil
}

// Results returns every recorded result for display.
func (s *Service) Results(ctx context.Context) ([]models.Result, error) {
	return s.store.ReadAll(ctx)
}

// Keys returns every known target url.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	return s.store.ListKeys(ctx)
}

// Healthy reports whether the store is reachable.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}
