// Package scheduler runs the periodic housekeeping jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/config"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/metrics"
)

// SessionCleaner purges expired login sessions.
type SessionCleaner interface {
	CleanupExpiredSessions() (int64, error)
}

// OrphanSweeper removes stored files that have no attachment row.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context, grace time.Duration) (int, error)
}

// jobTimeout bounds a single run of any job.
const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron     *cron.Cron
	sessions SessionCleaner
	files    OrphanSweeper
	grace    time.Duration
	logger   *zap.Logger
}

// New registers the jobs described by cfg. Nothing runs until Start.
func New(cfg config.JobsConfig, sessions SessionCleaner, files OrphanSweeper, logger *zap.Logger) (*Scheduler, error) {
	logger = logging.OrNop(logger).Named("scheduler")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sessions: sessions,
		files:    files,
		grace:    cfg.OrphanGrace,
		logger:   logger,
	}

	if _, err := s.cron.AddFunc(cfg.SessionCleanup, s.runSessionCleanup); err != nil {
		return nil, fmt.Errorf("invalid session cleanup schedule %q: %w", cfg.SessionCleanup, err)
	}
	if _, err := s.cron.AddFunc(cfg.OrphanSweep, s.runOrphanSweep); err != nil {
		return nil, fmt.Errorf("invalid orphan sweep schedule %q: %w", cfg.OrphanSweep, err)
	}
	return s, nil
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stopped before jobs finished")
	}
}

// CleanupSessions deletes expired sessions once and returns how many went.
func (s *Scheduler) CleanupSessions() (int64, error) {
	removed, err := s.sessions.CleanupExpiredSessions()
	if err != nil {
		return 0, err
	}
	metrics.HousekeepingRemovedTotal.WithLabelValues("sessions").Add(float64(removed))
	return removed, nil
}

// SweepOrphans deletes stored files past the grace period with no metadata.
func (s *Scheduler) SweepOrphans(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return s.files.SweepOrphans(ctx, s.grace)
}

func (s *Scheduler) runSessionCleanup() {
	removed, err := s.CleanupSessions()
	if err != nil {
		s.logger.Error("session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed", zap.Int64("count", removed))
	}
}

func (s *Scheduler) runOrphanSweep() {
	removed, err := s.SweepOrphans(context.Background())
	if err != nil {
		s.logger.Error("orphan sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("orphaned files removed", zap.Int("count", removed))
	}
}
