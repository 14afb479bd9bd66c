package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// jobTTL bounds how long a scheduled maintenance job stays useful
const jobTTL = 24 * time.Hour

// UserLister lists the IDs of every known user
type UserLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Maintenance enqueues the recurring routine jobs run by the scheduler
type Maintenance struct {
	jobQueue queue.Enqueuer
	users    UserLister
	logger   *zap.Logger
}

// NewMaintenance creates a maintenance scheduler
func NewMaintenance(jobQueue queue.Enqueuer, users UserLister, log *zap.Logger) *Maintenance {
	if log == nil {
		log = zap.NewNop()
	}
	return &Maintenance{jobQueue: jobQueue, users: users, logger: log}
}

// EnqueueSweep enqueues one global routine sweep
func (m *Maintenance) EnqueueSweep(ctx context.Context) error {
	job := queue.NewSweepJob(nil).ExpiresAt(time.Now().Add(jobTTL))

	if err := m.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue routine sweep: %w", err)
	}
	m.logger.Info("scheduled_routine_sweep", zap.String("job_id", job.ID.String()))
	return nil
}

// EnqueueExpiryNotices enqueues one expiring-soon check per user. A failure
// for one user is logged and the others are still scheduled.
func (m *Maintenance) EnqueueExpiryNotices(ctx context.Context) error {
	userIDs, err := m.users.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	notAfter := time.Now().Add(jobTTL)
	scheduled := 0
	for _, id := range userIDs {
		job := queue.NewExpiryNoticeJob(id).ExpiresAt(notAfter)
		if err := m.jobQueue.Enqueue(ctx, job); err != nil {
			m.logger.Warn("failed_to_schedule_expiry_notice",
				zap.String("user_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		scheduled++
	}

	m.logger.Info("scheduled_expiry_notices",
		zap.Int("user_count", len(userIDs)),
		zap.Int("scheduled", scheduled),
	)
	return nil
}
