package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/pkg/logger"
)

// Scheduler runs the retention sweep once at startup and then every
// midnight. Retention windows come from the tracking service config.
type Scheduler struct {
	trackingService tracking.Service
	logger          *logger.Logger
	done            chan struct{}
}

func NewScheduler(trackingService tracking.Service, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		trackingService: trackingService,
		logger:          logger,
		done:            make(chan struct{}),
	}
}

// Start runs one sweep immediately, then schedules the midnight loop. The
// loop exits when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	// Run immediately at startup
	s.runRetentionSweep(ctx)

	// Calculate time until next midnight
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	timeUntilMidnight := nextMidnight.Sub(now)

	s.logger.Info("Retention scheduler initialized",
		zap.Time("current_time", now),
		zap.Time("next_run", nextMidnight),
		zap.Duration("time_until_next_run", timeUntilMidnight),
	)

	go func() {
		defer close(s.done)

		// Wait until first midnight
		timer := time.NewTimer(timeUntilMidnight)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Then run every 24 hours
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			s.runRetentionSweep(ctx)
			select {
			case <-ctx.Done():
				s.logger.Info("Retention scheduler stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Done is closed when the midnight loop exits.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) runRetentionSweep(ctx context.Context) {
	startTime := time.Now()

	s.logger.Info("Starting retention sweep", zap.Time("start_time", startTime))

	summaries, details, err := s.trackingService.Cleanup(ctx)
	if err != nil {
		s.logger.Error("Retention sweep failed",
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Retention sweep completed",
		zap.Int64("summaries_deleted", summaries),
		zap.Int64("details_deleted", details),
		zap.Duration("duration", time.Since(startTime)),
	)
}
