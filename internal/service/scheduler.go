package service

import (
	"context"
	"time"

	"sendlater/internal/constants"

	"github.com/sirupsen/logrus"
)

// Cleaner removes terminal messages older than the retention window.
type Cleaner interface {
	CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error)
}

// Scheduler drives the recurring auto-sync trigger and daily retention
// cleanup while the process is running.
type Scheduler struct {
	engine        *SyncEngine
	cleaner       Cleaner
	interval      time.Duration
	retentionDays int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(engine *SyncEngine, cleaner Cleaner, interval time.Duration, retentionDays int, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = constants.DefaultSyncIntervalSec * time.Second
	}
	return &Scheduler{
		engine:        engine,
		cleaner:       cleaner,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer cleanupTicker.Stop()

	s.logger.WithField("interval", s.interval).Info("Starting sync scheduler")

	s.runSync(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runSync(ctx)
		case <-cleanupTicker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runSync(ctx context.Context) {
	summary := s.engine.RunCycle(ctx, false)
	if summary.Skipped {
		s.logger.WithField("reason", summary.SkipReason).Debug("Scheduled sync skipped")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"syncedCount": summary.SyncedCount,
		"success":     summary.Success,
	}).Info("Scheduled sync completed")
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if s.retentionDays <= 0 {
		return
	}

	removed, err := s.cleaner.CleanupOldMessages(ctx, s.retentionDays)
	if err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old messages")
		return
	}
	if removed > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed":       removed,
			"retentionDays": s.retentionDays,
		}).Info("Removed old delivered messages")
	}
}
