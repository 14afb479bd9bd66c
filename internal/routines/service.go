package routines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRoutine wraps every routine validation failure
	ErrInvalidRoutine = errors.New("invalid routine")
	// ErrDaysOfWeekRequired is returned for WEEKLY and CUSTOM routines without days
	ErrDaysOfWeekRequired = fmt.Errorf("%w: daysOfWeek is required for WEEKLY and CUSTOM frequencies", ErrInvalidRoutine)
)

// Repository is the full routine persistence used by Service
type Repository interface {
	Store
	Create(ctx context.Context, r *models.Routine) error
	ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.Routine, error)
	Update(ctx context.Context, r *models.Routine) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Input describes a routine to create
type Input struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description,omitempty" validate:"max=2000"`
	Frequency   models.Frequency `json:"frequency" validate:"required,frequency"`
	Time        string           `json:"time,omitempty" validate:"omitempty,clock"`
	DaysOfWeek  []models.Weekday `json:"daysOfWeek,omitempty" validate:"omitempty,dive,weekday"`
	Duration    int              `json:"duration,omitempty" validate:"omitempty,min=1,max=1440"`
	Priority    models.Priority  `json:"priority,omitempty" validate:"omitempty,priority"`
	AutoRenew   *bool            `json:"autoRenew,omitempty"`
}

// Patch describes a partial routine update; nil fields are left unchanged
type Patch struct {
	Title       *string           `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Frequency   *models.Frequency `json:"frequency,omitempty" validate:"omitempty,frequency"`
	Time        *string           `json:"time,omitempty" validate:"omitempty,clock|len=0"`
	DaysOfWeek  *[]models.Weekday `json:"daysOfWeek,omitempty" validate:"omitempty,dive,weekday"`
	Duration    *int              `json:"duration,omitempty" validate:"omitempty,min=1,max=1440"`
	Priority    *models.Priority  `json:"priority,omitempty" validate:"omitempty,priority"`
	AutoRenew   *bool             `json:"autoRenew,omitempty"`
}

// Validate checks the domain rules of a routine
func Validate(r *models.Routine) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRoutine)
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRoutine, r.Frequency)
	}
	if r.Frequency.RequiresDays() && len(r.DaysOfWeek) == 0 {
		return ErrDaysOfWeekRequired
	}
	for _, d := range r.DaysOfWeek {
		if !d.Valid() {
			return fmt.Errorf("%w: unknown weekday %q", ErrInvalidRoutine, d)
		}
	}
	if r.Time != "" && !clock.Valid(r.Time) {
		return fmt.Errorf("%w: time must be HH:mm", ErrInvalidRoutine)
	}
	if r.Duration < models.MinTaskDuration || r.Duration > models.MaxTaskDuration {
		return fmt.Errorf("%w: duration must be between 1 and 1440 minutes", ErrInvalidRoutine)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidRoutine, r.Priority)
	}
	return nil
}

// Service implements routine management for one user at a time
type Service struct {
	repo      Repository
	lifecycle *Lifecycle
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a routine service
func NewService(repo Repository, lifecycle *Lifecycle, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, lifecycle: lifecycle, logger: log, now: time.Now}
}

// Lifecycle returns the lifecycle manager used by the service
func (s *Service) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// NewRoutine builds an active routine from in, expiring one month after now.
// Omitted duration and priority take their defaults.
func NewRoutine(userID uuid.UUID, in Input, now time.Time) *models.Routine {
	now = now.UTC().Truncate(time.Microsecond)
	r := &models.Routine{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Frequency:   in.Frequency,
		Time:        in.Time,
		DaysOfWeek:  in.DaysOfWeek,
		Duration:    in.Duration,
		Priority:    in.Priority,
		IsActive:    true,
		ExpiresAt:   now.AddDate(0, 1, 0),
		AutoRenew:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if r.DaysOfWeek == nil {
		r.DaysOfWeek = []models.Weekday{}
	}
	if r.Duration == 0 {
		r.Duration = models.DefaultPreferredTaskDuration
	}
	if r.Priority == "" {
		r.Priority = models.PriorityMedium
	}
	if in.AutoRenew != nil {
		r.AutoRenew = *in.AutoRenew
	}
	return r
}

// Create validates and stores a new routine expiring one month from now
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (*models.Routine, error) {
	r := NewRoutine(userID, in, s.now())
	if err := Validate(r); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create routine: %w", err)
	}
	s.logger.Info("routine_created",
		zap.String("routine_id", r.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("frequency", string(r.Frequency)),
	)
	return r, nil
}

// Get returns a routine owned by userID
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns the user's routines
func (s *Service) List(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.Routine, error) {
	return s.repo.ListByUser(ctx, userID, activeOnly)
}

// Update applies patch and re-validates the routine
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*models.Routine, error) {
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		r.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.Frequency != nil {
		r.Frequency = *patch.Frequency
	}
	if patch.Time != nil {
		r.Time = *patch.Time
	}
	if patch.DaysOfWeek != nil {
		r.DaysOfWeek = *patch.DaysOfWeek
	}
	if r.DaysOfWeek == nil {
		r.DaysOfWeek = []models.Weekday{}
	}
	if patch.Duration != nil {
		r.Duration = *patch.Duration
	}
	if patch.Priority != nil {
		r.Priority = *patch.Priority
	}
	if patch.AutoRenew != nil {
		r.AutoRenew = *patch.AutoRenew
	}
	if err := Validate(r); err != nil {
		return nil, err
	}
	r.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update routine: %w", err)
	}
	return r, nil
}

// Delete removes a routine owned by userID
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Toggle flips the active flag of a routine
func (s *Service) Toggle(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error) {
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if r.IsActive {
		if err := s.lifecycle.Deactivate(ctx, id); err != nil {
			return nil, err
		}
		r.IsActive = false
		return r, nil
	}
	return s.lifecycle.Reactivate(ctx, id)
}

// Renew extends a routine owned by userID by one month
func (s *Service) Renew(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.lifecycle.Renew(ctx, id)
}

// Deactivate turns off a routine owned by userID
func (s *Service) Deactivate(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.lifecycle.Deactivate(ctx, id)
}

// Reactivate turns a routine owned by userID back on. An expired routine
// gets a fresh one month period.
func (s *Service) Reactivate(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.lifecycle.Reactivate(ctx, id)
}

// ExpiringSoon lists the user's routines awaiting a renewal decision
func (s *Service) ExpiringSoon(ctx context.Context, userID uuid.UUID) ([]models.ExpiringRoutine, error) {
	return s.lifecycle.ExpiringSoon(ctx, &userID)
}

// ApplyDecisions applies renewal decisions for routines owned by userID.
// Decisions about routines owned by someone else fail individually.
func (s *Service) ApplyDecisions(ctx context.Context, userID uuid.UUID, decisions []models.RenewalDecision) error {
	var errs []error
	owned := make([]models.RenewalDecision, 0, len(decisions))
	for _, d := range decisions {
		if _, err := s.Get(ctx, userID, d.RoutineID); err != nil {
			errs = append(errs, fmt.Errorf("routine %s: %w", d.RoutineID, err))
			continue
		}
		owned = append(owned, d)
	}
	if err := s.lifecycle.ApplyDecisions(ctx, owned); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ActiveRoutines returns the routines that can generate tasks for the user
func (s *Service) ActiveRoutines(ctx context.Context, userID uuid.UUID) ([]*models.Routine, error) {
	return s.repo.ListByUser(ctx, userID, true)
}
