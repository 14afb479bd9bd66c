package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType names the work a job carries
type JobType string

const (
	// JobTypeRoutineSweep renews or deactivates expired routines, for one user or all
	JobTypeRoutineSweep JobType = "routine_sweep"
	// JobTypeCalendarPublish pushes a validated planning to the external calendar
	JobTypeCalendarPublish JobType = "calendar_publish"
	// JobTypeExpiryNotice collects routines expiring soon so users can be asked
	JobTypeExpiryNotice JobType = "expiry_notice"
)

// DefaultMaxRetries is the retry budget of a new job
const DefaultMaxRetries = 3

// Job is the message body exchanged between the API, the scheduler and the
// worker. The wire format is snake_case JSON.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`     // nil targets every user
	PlanningID *uuid.UUID `json:"planning_id,omitempty"` // calendar publish only
	NotBefore  *time.Time `json:"not_before,omitempty"`
	NotAfter   *time.Time `json:"not_after,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

func NewJob(jobType JobType, userID *uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewSweepJob creates a routine sweep job. A nil userID sweeps every user.
func NewSweepJob(userID *uuid.UUID) *Job {
	return NewJob(JobTypeRoutineSweep, userID)
}

// NewExpiryNoticeJob creates the expiring-soon check of one user
func NewExpiryNoticeJob(userID uuid.UUID) *Job {
	return NewJob(JobTypeExpiryNotice, &userID)
}

// NewCalendarPublishJob creates a job publishing one planning
func NewCalendarPublishJob(userID, planningID uuid.UUID) *Job {
	job := NewJob(JobTypeCalendarPublish, &userID)
	job.PlanningID = &planningID
	return job
}

// ExpiresAt makes the job worthless after t and returns it
func (j *Job) ExpiresAt(t time.Time) *Job {
	j.NotAfter = &t
	return j
}

// Due reports whether the job may run at now
func (j *Job) Due(now time.Time) bool {
	return (j.NotBefore == nil || !now.Before(*j.NotBefore)) && !j.Expired(now)
}

// Expired reports whether the job's NotAfter has passed at now
func (j *Job) Expired(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// NextAttempt returns a copy of the job counting one more retry that must
// not run before notBefore
func (j *Job) NextAttempt(notBefore time.Time) *Job {
	next := *j
	next.RetryCount++
	next.NotBefore = &notBefore
	return &next
}
