// Package scheduler runs the daily background jobs of the worker.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps a cron runner with structured logging and panic recovery
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a scheduler evaluating schedules in loc
func New(loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		logger: log,
	}
}

// DailySpec converts an HH:mm time to a seconds-precision cron spec
func DailySpec(hhmm string) (string, error) {
	minute, err := clock.Parse(hhmm)
	if err != nil {
		return "", err
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute%60, minute/60), nil
}

// ScheduleDaily registers job to run every day at hhmm. The job receives
// a context bounded by timeout.
func (s *Scheduler) ScheduleDaily(name, hhmm string, timeout time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	spec, err := DailySpec(hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule for %s: %w", name, err)
	}
	id, err := s.cron.AddFunc(spec, s.wrap(name, timeout, job))
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("job_scheduled", zap.String("job", name), zap.String("at", hhmm))
	return id, nil
}

// ScheduleInterval registers job to run every interval
func (s *Scheduler) ScheduleInterval(name string, interval, timeout time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), s.wrap(name, timeout, job))
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("job_scheduled", zap.String("job", name), zap.Duration("every", interval))
	return id, nil
}

func (s *Scheduler) wrap(name string, timeout time.Duration, job func(ctx context.Context) error) func() {
	return func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled_job_failed",
				zap.String("job", name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("scheduled_job_completed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Next returns the next activation of an entry
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
