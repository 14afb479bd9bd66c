// Package workers executes queued background jobs and schedules recurring ones.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	logpkg "github.com/benvon/voice-planner/internal/logger"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/queue"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/services/gcalendar"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// baseRetryDelay is the backoff of the first retry; it doubles per attempt
const baseRetryDelay = 30 * time.Second

// RoutineSweeper settles expired routines and lists those expiring soon
type RoutineSweeper interface {
	Sweep(ctx context.Context, userID *uuid.UUID) (*routines.SweepReport, error)
	ExpiringSoon(ctx context.Context, userID *uuid.UUID) ([]models.ExpiringRoutine, error)
}

// CalendarPublisher pushes a validated planning to the external calendar
type CalendarPublisher interface {
	Publish(ctx context.Context, planningID uuid.UUID) (*gcalendar.PublishReport, error)
}

var (
	_ RoutineSweeper    = (*routines.Lifecycle)(nil)
	_ CalendarPublisher = (*gcalendar.Publisher)(nil)
)

// JobProcessor dispatches queued jobs by type
type JobProcessor struct {
	sweeper   RoutineSweeper
	publisher CalendarPublisher // nil disables calendar publishing
	jobQueue  queue.Enqueuer    // for re-enqueueing jobs with delays
	logger    *zap.Logger
}

// NewJobProcessor creates a job processor. publisher may be nil.
func NewJobProcessor(sweeper RoutineSweeper, publisher CalendarPublisher, jobQueue queue.Enqueuer, log *zap.Logger) *JobProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobProcessor{
		sweeper:   sweeper,
		publisher: publisher,
		jobQueue:  jobQueue,
		logger:    log,
	}
}

// ProcessJob runs one job and settles its message
func (p *JobProcessor) ProcessJob(ctx context.Context, msg queue.Delivery) error {
	job := msg.Job()

	switch job.Type {
	case queue.JobTypeRoutineSweep:
		return p.settle(ctx, msg, job, p.processSweep(ctx, job))

	case queue.JobTypeExpiryNotice:
		return p.settle(ctx, msg, job, p.processExpiryNotice(ctx, job))

	case queue.JobTypeCalendarPublish:
		err := p.processCalendarPublish(ctx, job)
		if err != nil && (errors.Is(err, gcalendar.ErrNotValidated) || gcalendar.IsPermanentError(err) || errors.Is(err, errMissingPlanning)) {
			p.logger.Warn("calendar_publish_rejected",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			if nackErr := msg.Nack(false); nackErr != nil {
				p.logger.Error("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
			}
			return fmt.Errorf("calendar publish failed permanently: %w", err)
		}
		if err != nil && gcalendar.IsRateLimitError(err) {
			return p.retryLater(ctx, msg, job, err, gcalendar.RetryDelay(job.RetryCount))
		}
		return p.settle(ctx, msg, job, err)

	default:
		// Unknown job types go to the DLQ.
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Error("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

var errMissingPlanning = errors.New("planning_id is required for calendar publish job")

func (p *JobProcessor) processSweep(ctx context.Context, job *queue.Job) error {
	report, err := p.sweeper.Sweep(ctx, job.UserID)
	if err != nil {
		return err
	}
	// Per-routine failures are logged by the sweep and retried on the next run.
	p.logger.Info("routine_sweep_job_completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("renewed", report.Renewed),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("failures", len(report.Failures)),
	)
	return nil
}

func (p *JobProcessor) processExpiryNotice(ctx context.Context, job *queue.Job) error {
	expiring, err := p.sweeper.ExpiringSoon(ctx, job.UserID)
	if err != nil {
		return err
	}
	for _, r := range expiring {
		p.logger.Info("routine_expiring_soon",
			zap.String("user_id", r.UserID.String()),
			zap.String("routine_id", r.ID.String()),
			zap.String("title", logpkg.SanitizeTitle(r.Title)),
			zap.Time("expires_at", r.ExpiresAt),
			zap.Bool("auto_renew", r.AutoRenew),
		)
	}
	p.logger.Info("expiry_notice_completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("expiring", len(expiring)),
	)
	return nil
}

func (p *JobProcessor) processCalendarPublish(ctx context.Context, job *queue.Job) error {
	if p.publisher == nil {
		p.logger.Debug("calendar_publish_disabled", zap.String("job_id", job.ID.String()))
		return nil
	}
	if job.PlanningID == nil {
		return errMissingPlanning
	}
	_, err := p.publisher.Publish(ctx, *job.PlanningID)
	return err
}

// settle acks a successful job or routes the failure through the retry logic
func (p *JobProcessor) settle(ctx context.Context, msg queue.Delivery, job *queue.Job, err error) error {
	if err != nil {
		return p.handleJobError(ctx, msg, job, err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// handleJobError retries a failed job with exponential backoff until its
// retry budget is spent, then dead-letters it.
func (p *JobProcessor) handleJobError(ctx context.Context, msg queue.Delivery, job *queue.Job, err error) error {
	if job.CanRetry() {
		return p.retryLater(ctx, msg, job, err, backoff(job.RetryCount))
	}

	p.logger.Error("job_failed_max_retries",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		p.logger.Error("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

// retryLater acks the message and re-enqueues a copy with NotBefore set.
// Without queue access the message is requeued for an immediate retry.
func (p *JobProcessor) retryLater(ctx context.Context, msg queue.Delivery, job *queue.Job, err error, delay time.Duration) error {
	if !job.CanRetry() {
		return p.handleJobError(ctx, msg, job, err)
	}

	retry := job.NextAttempt(time.Now().Add(delay))

	if p.jobQueue == nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Error("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Warn("failed_to_ack_job_before_retry", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}
	if enqueueErr := p.jobQueue.Enqueue(ctx, retry); enqueueErr != nil {
		p.logger.Error("failed_to_reenqueue_job",
			zap.String("job_id", job.ID.String()),
			zap.Error(enqueueErr),
		)
		return fmt.Errorf("job failed, re-enqueue failed: %w", errors.Join(err, enqueueErr))
	}

	p.logger.Warn("job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", retry.MaxRetries),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	return nil
}

func backoff(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
