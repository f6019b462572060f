package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"metricsync/internal/config"
	"metricsync/internal/models"

	"github.com/rs/zerolog"
)

// Enqueuer is the slice of the job queue the scheduler drives.
type Enqueuer interface {
	EnqueueAll(opts models.SyncOptions) []*models.Job
}

// Scheduler fires one full sync cycle per day at the configured minute
// and hour. It is deliberately not a cron evaluator: production
// cadences are daily single-firing expressions, and NextRun is computed
// from the minute/hour fields alone.
type Scheduler struct {
	minute int
	hour   int // -1 means every hour
	loc    *time.Location
	queue  Enqueuer
	logger *zerolog.Logger

	active    atomic.Bool
	lastFired atomic.Int64 // unix minute of the last firing
}

// New validates the cadence up front; an invalid expression or timezone
// is a startup error, never a silent no-op.
func New(cfg config.SchedulerConfig, queue Enqueuer, logger *zerolog.Logger) (*Scheduler, error) {
	if err := config.ValidateCadence(cfg.Cadence); err != nil {
		return nil, err
	}
	minute, hour, err := config.ParseCadence(cfg.Cadence)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{minute: minute, hour: hour, loc: loc, queue: queue, logger: logger}, nil
}

// Start runs the tick loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.active.Store(true)
	defer s.active.Store(false)

	s.logger.Info().Int("minute", s.minute).Int("hour", s.hour).Str("tz", s.loc.String()).Msg("scheduler started")

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case now := <-ticker.C:
			s.maybeFire(now)
		}
	}
}

func (s *Scheduler) maybeFire(now time.Time) {
	local := now.In(s.loc)
	if local.Minute() != s.minute {
		return
	}
	if s.hour != -1 && local.Hour() != s.hour {
		return
	}

	unixMinute := local.Unix() / 60
	if s.lastFired.Load() == unixMinute {
		return
	}
	s.lastFired.Store(unixMinute)
	s.fire()
}

// fire enqueues a full cycle with no explicit date; adapters default to
// yesterday. Enqueue failures are logged so one bad tick never stops
// future ticks.
func (s *Scheduler) fire() {
	jobs := s.queue.EnqueueAll(models.SyncOptions{})
	s.logger.Info().Int("jobs", len(jobs)).Msg("scheduled sync cycle enqueued")
}

// TriggerNow enqueues a full cycle outside the cadence.
func (s *Scheduler) TriggerNow() []*models.Job {
	s.logger.Info().Msg("manual sync cycle triggered")
	return s.queue.EnqueueAll(models.SyncOptions{})
}

// IsActive reports whether the tick loop is running.
func (s *Scheduler) IsActive() bool {
	return s.active.Load()
}

// NextRun is the next firing time computed purely from the configured
// minute/hour fields.
func (s *Scheduler) NextRun() time.Time {
	return s.nextRunFrom(time.Now())
}

func (s *Scheduler) nextRunFrom(now time.Time) time.Time {
	local := now.In(s.loc)

	if s.hour == -1 {
		next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), s.minute, 0, 0, s.loc)
		if !next.After(local) {
			next = next.Add(time.Hour)
		}
		return next
	}

	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
