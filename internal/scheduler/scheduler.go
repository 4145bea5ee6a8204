// Package scheduler runs periodic housekeeping next to the API.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
	"github.com/josh-kwaku/royalty-ledger/internal/metrics"
)

const (
	cleanupSchedule    = "@every 1h"
	stuckCheckSchedule = "@every 5m"
)

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

type stuckLister interface {
	StuckProcessing(ctx context.Context, cutoff time.Time) ([]domain.Payout, error)
}

type Scheduler struct {
	cron       *cron.Cron
	cleaner    idempotencyCleaner
	payouts    stuckLister
	metrics    *metrics.Metrics
	logger     *slog.Logger
	staleAfter time.Duration
}

func New(cleaner idempotencyCleaner, payouts stuckLister, m *metrics.Metrics, logger *slog.Logger, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))))),
		cleaner:    cleaner,
		payouts:    payouts,
		metrics:    m,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// Start registers the jobs and runs them until ctx is cancelled. Jobs get a
// context that is cancelled on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(cleanupSchedule, func() { s.CleanIdempotency(ctx) }); err != nil {
		return fmt.Errorf("Start: add cleanup job: %w", err)
	}
	if _, err := s.cron.AddFunc(stuckCheckSchedule, func() { s.ReportStuck(ctx) }); err != nil {
		return fmt.Errorf("Start: add stuck payout job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler stopped")
	}()
	return nil
}

func (s *Scheduler) CleanIdempotency(ctx context.Context) {
	n, err := s.cleaner.CleanExpired(ctx)
	if err != nil {
		s.logger.Error("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("idempotency cache cleaned", "removed", n)
	}
}

// ReportStuck flags payouts that were handed to the provider and never heard
// back. Resolution stays manual: the provider may still settle them.
func (s *Scheduler) ReportStuck(ctx context.Context) int {
	stuck, err := s.payouts.StuckProcessing(ctx, time.Now().UTC().Add(-s.staleAfter))
	if err != nil {
		s.logger.Error("stuck payout check failed", "error", err)
		return 0
	}

	s.metrics.SetStuckPayouts(len(stuck))
	for _, p := range stuck {
		s.logger.Warn("payout stuck in processing",
			"payout_id", p.ID,
			"artist_id", p.ArtistID,
			"since", p.UpdatedAt,
		)
	}
	return len(stuck)
}
