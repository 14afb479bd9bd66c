// Package planner runs planning workflows for one user at a time. It loads
// preferences and routines, calls the planning engine, gates validation on
// routine renewal decisions and saves validated plannings.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/planning"
	"github.com/benvon/voice-planner/internal/queue"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidRange is returned when a date range ends before it starts
var ErrInvalidRange = errors.New("invalid date range")

// PreferencesSource returns normalized preferences of a user
type PreferencesSource interface {
	Get(ctx context.Context, userID uuid.UUID) (models.Preferences, error)
}

// RoutineSource is the routine access used by planning workflows
type RoutineSource interface {
	ActiveRoutines(ctx context.Context, userID uuid.UUID) ([]*models.Routine, error)
	ExpiringSoon(ctx context.Context, userID uuid.UUID) ([]models.ExpiringRoutine, error)
	ApplyDecisions(ctx context.Context, userID uuid.UUID, decisions []models.RenewalDecision) error
}

// PlanningStore persists plannings
type PlanningStore interface {
	Upsert(ctx context.Context, p *models.Planning) error
	GetByDate(ctx context.Context, userID uuid.UUID, date string) (*models.Planning, error)
	MonthSummary(ctx context.Context, userID uuid.UUID, from, to string) ([]models.DaySummary, error)
}

var _ RoutineSource = (*routines.Service)(nil)

// Service implements the planning workflows
type Service struct {
	engine    *planning.Engine
	prefs     PreferencesSource
	routines  RoutineSource
	plannings PlanningStore
	jobs      queue.Enqueuer
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a planner. jobs may be nil, in which case validated
// plannings are not published to the calendar.
func NewService(engine *planning.Engine, prefs PreferencesSource, rs RoutineSource, plannings PlanningStore, jobs queue.Enqueuer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if engine == nil {
		engine = planning.NewEngine(log)
	}
	return &Service{
		engine:    engine,
		prefs:     prefs,
		routines:  rs,
		plannings: plannings,
		jobs:      jobs,
		logger:    log,
		now:       time.Now,
	}
}

// Generate validates the submitted tasks and builds a planning proposal.
// Nothing is saved.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req GenerateRequest) (*GenerateResult, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := prefs.Location()

	var date *time.Time
	if req.Date != "" {
		d, err := parseDate(req.Date, loc)
		if err != nil {
			return nil, err
		}
		date = &d
	}

	tasks := make([]models.TaskInput, 0, len(req.Tasks))
	var warnings []planning.Warning
	for i, tr := range req.Tasks {
		in, w, err := tr.toInput(loc)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		tasks = append(tasks, in)
		warnings = append(warnings, w...)
	}

	includeRoutines := req.IncludeRoutines == nil || *req.IncludeRoutines
	var active []*models.Routine
	if includeRoutines {
		active, err = s.routines.ActiveRoutines(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load routines: %w", err)
		}
	}

	res, err := s.engine.Generate(ctx, planning.Request{
		Date:            date,
		Tasks:           tasks,
		Routines:        active,
		IncludeRoutines: includeRoutines,
		Preferences:     prefs,
	})
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Date:     res.Date.Format(clock.DateLayout),
		Tasks:    res.Tasks,
		Warnings: append(warnings, res.Warnings...),
	}, nil
}

// Validate saves an accepted proposal. When routines are about to expire and
// the request carries no renewal decisions, nothing is saved and the
// expiring routines are returned instead.
func (s *Service) Validate(ctx context.Context, userID uuid.UUID, req ValidateRequest) (*ValidateResult, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := prefs.Location()

	date, err := parseDate(req.Date, loc)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.PlannedTask, 0, len(req.Tasks))
	for i, pt := range req.Tasks {
		in, _, err := pt.toInput(loc)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		if pt.ScheduledAt.IsZero() {
			return nil, fmt.Errorf("task %d: %w: scheduledAt is required", i+1, ErrInvalidTask)
		}
		tasks = append(tasks, models.PlannedTask{
			TaskInput:   in,
			ScheduledAt: pt.ScheduledAt,
			Deferred:    pt.Deferred,
		})
	}

	if req.RoutineRenewals == nil {
		expiring, err := s.routines.ExpiringSoon(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check expiring routines: %w", err)
		}
		if len(expiring) > 0 {
			s.logger.Info("planning_renewal_decision_required",
				zap.String("user_id", userID.String()),
				zap.Int("expiring", len(expiring)),
			)
			return &ValidateResult{RequiresRenewalDecision: true, ExpiringRoutines: expiring}, nil
		}
	} else if err := s.routines.ApplyDecisions(ctx, userID, req.RoutineRenewals); err != nil {
		return nil, fmt.Errorf("failed to apply renewal decisions: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].ScheduledAt.Before(tasks[j].ScheduledAt)
	})
	p := &models.Planning{
		UserID: userID,
		Date:   date.Format(clock.DateLayout),
		Status: models.PlanningValidated,
		Tasks:  tasks,
	}
	if err := s.plannings.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save planning: %w", err)
	}
	s.logger.Info("planning_validated",
		zap.String("user_id", userID.String()),
		zap.String("planning_id", p.ID.String()),
		zap.String("date", p.Date),
		zap.Int("tasks", len(p.Tasks)),
	)

	s.enqueuePublish(ctx, p)
	return &ValidateResult{Planning: p}, nil
}

// enqueuePublish is best effort; the planning is saved either way
func (s *Service) enqueuePublish(ctx context.Context, p *models.Planning) {
	if s.jobs == nil || len(p.Tasks) == 0 {
		return
	}
	job := queue.NewCalendarPublishJob(p.UserID, p.ID)
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Warn("calendar_publish_enqueue_failed",
			zap.String("planning_id", p.ID.String()),
			zap.Error(err),
		)
	}
}

// Get returns the saved planning of a user for a YYYY-MM-DD date
func (s *Service) Get(ctx context.Context, userID uuid.UUID, date string) (*models.Planning, error) {
	if _, err := parseDate(date, time.UTC); err != nil {
		return nil, err
	}
	return s.plannings.GetByDate(ctx, userID, date)
}

// Occurrences previews the tasks routines generate on each day of [from, to]
func (s *Service) Occurrences(ctx context.Context, userID uuid.UUID, from, to string) (map[string][]models.TaskInput, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := prefs.Location()

	start, err := parseDate(from, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(to, loc)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to, from)
	}

	active, err := s.routines.ActiveRoutines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load routines: %w", err)
	}
	occurrences := routines.Occurrences(active, start, end, s.now(), loc)
	for _, tasks := range occurrences {
		for i := range tasks {
			if tasks[i].Duration == 0 {
				tasks[i].Duration = prefs.DurationFor(tasks[i].Category)
			}
		}
	}
	return occurrences, nil
}

// MonthSummary returns one entry per day of the month that has saved or
// routine-generated tasks. Saved plannings take precedence over routine
// occurrences for the same day.
func (s *Service) MonthSummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]models.DaySummary, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	loc := prefs.Location()

	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	from, to := first.Format(clock.DateLayout), last.Format(clock.DateLayout)

	saved, err := s.plannings.MonthSummary(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]models.DaySummary, len(saved))
	for _, d := range saved {
		byDate[d.Date] = d
	}

	active, err := s.routines.ActiveRoutines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load routines: %w", err)
	}
	for date, tasks := range routines.Occurrences(active, first, last, s.now(), loc) {
		if _, ok := byDate[date]; ok {
			continue
		}
		day := models.DaySummary{Date: date, Count: len(tasks)}
		for _, t := range tasks {
			if t.Priority.Rank() > day.HighestPriority.Rank() {
				day.HighestPriority = t.Priority
			}
		}
		byDate[date] = day
	}

	out := make([]models.DaySummary, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
