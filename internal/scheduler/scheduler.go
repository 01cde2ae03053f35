// Package scheduler drives the pipeline's background jobs: the daily
// integrity sweep, nightly reconciliation of the previous day's predictions
// and periodic backup cleanup. Cache staleness stays lazy; nothing here
// refreshes the cache on a timer.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/backup"
	"mlbhits/pipeline/internal/config"
	"mlbhits/pipeline/internal/integrity"
	"mlbhits/pipeline/internal/verify"
)

// Scheduler manages the cron-driven maintenance jobs.
type Scheduler struct {
	cfg     *config.Config
	guard   *integrity.Guard
	verify  *verify.Service
	backups *backup.Manager
	cron    *cron.Cron
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config, guard *integrity.Guard, v *verify.Service, backups *backup.Manager) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		guard:   guard,
		verify:  v,
		backups: backups,
		cron:    cron.New(cron.WithLocation(cfg.Location())),
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.IntegritySweepCron, func() {
		log.Info().Msg("Running integrity sweep...")
		report, err := s.guard.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Integrity sweep failed")
			return
		}
		if !report.Healthy() {
			log.Error().Int("issues", len(report.Remaining)).Msg("Integrity sweep found unresolved issues")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule integrity sweep: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.ReconcileCron, func() {
		date := time.Now().In(s.cfg.Location()).AddDate(0, 0, -1).Format("2006-01-02")
		log.Info().Str("date", date).Msg("Running nightly reconciliation...")
		report, err := s.verify.Reconcile(ctx, date)
		if err != nil {
			log.Error().Err(err).Str("date", date).Msg("Nightly reconciliation failed")
			return
		}
		log.Info().
			Str("date", date).
			Int("kept", report.Kept).
			Int("removed", report.Removed).
			Msg("Nightly reconciliation complete")
	}); err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.BackupCleanupCron, func() {
		log.Info().Msg("Running backup cleanup...")
		if err := s.backups.Cleanup(s.cfg.BackupRetentionDays); err != nil {
			log.Error().Err(err).Msg("Backup cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule backup cleanup: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("sweep", s.cfg.IntegritySweepCron).
		Str("reconcile", s.cfg.ReconcileCron).
		Str("cleanup", s.cfg.BackupCleanupCron).
		Msg("Maintenance jobs scheduled")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	if s.cron != nil {
		s.cron.Stop()
	}
	log.Info().Msg("Scheduler stopped")
}
