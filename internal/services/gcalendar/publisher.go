package gcalendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotValidated is returned when publishing a planning that is still a draft
var ErrNotValidated = errors.New("planning is not validated")

// PlanningStore is the planning persistence the publisher needs
type PlanningStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Planning, error)
	SetCalendarEventID(ctx context.Context, taskID uuid.UUID, eventID string) error
	StaleCalendarEvents(ctx context.Context, planningID uuid.UUID) ([]string, error)
	ClearStaleCalendarEvent(ctx context.Context, planningID uuid.UUID, eventID string) error
}

// PublishReport summarizes one publish run
type PublishReport struct {
	Created int
	Deleted int
	Skipped int
	Failed  int
}

// Publisher copies validated plannings into a calendar. Tasks that already
// carry an event ID are skipped so a retried publish never duplicates events.
// Events of tasks replaced by a later validation are deleted first.
type Publisher struct {
	events     Events
	plannings  PlanningStore
	calendarID string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewPublisher creates a publisher pacing API calls at perSecond
func NewPublisher(events Events, plannings PlanningStore, calendarID string, perSecond float64, log *zap.Logger) *Publisher {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	if perSecond <= 0 {
		perSecond = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		events:     events,
		plannings:  plannings,
		calendarID: calendarID,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     log,
	}
}

// Publish creates an event for every placed task of a validated planning.
// Deferred tasks belong to another day and are not published.
func (p *Publisher) Publish(ctx context.Context, planningID uuid.UUID) (*PublishReport, error) {
	planning, err := p.plannings.GetByID(ctx, planningID)
	if err != nil {
		return nil, fmt.Errorf("failed to load planning: %w", err)
	}
	if planning.Status != models.PlanningValidated {
		return nil, ErrNotValidated
	}

	report := &PublishReport{}
	var errs []error
	if err := p.deleteStale(ctx, planningID, report, &errs); err != nil {
		return report, errors.Join(append(errs, err)...)
	}
	for _, task := range planning.Tasks {
		if task.Deferred || task.CalendarEventID != nil {
			report.Skipped++
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return report, errors.Join(append(errs, err)...)
		}

		eventID, err := p.events.CreateEvent(ctx, EventRequest{
			CalendarID:  p.calendarID,
			Summary:     task.Title,
			Description: task.Description,
			Location:    task.Location,
			Start:       task.ScheduledAt,
			End:         task.End(),
			TaskID:      task.ID.String(),
		})
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("task %s: %w", task.ID, err))
			p.logger.Warn("calendar_event_create_failed",
				zap.String("planning_id", planningID.String()),
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := p.plannings.SetCalendarEventID(ctx, task.ID, eventID); err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("task %s: %w", task.ID, err))
			p.logger.Warn("calendar_event_link_failed",
				zap.String("task_id", task.ID.String()),
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			continue
		}
		report.Created++
	}

	p.logger.Info("planning_published",
		zap.String("planning_id", planningID.String()),
		zap.String("user_id", planning.UserID.String()),
		zap.Int("created", report.Created),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, errors.Join(errs...)
}

// deleteStale removes events of replaced tasks. A failed delete stays
// recorded and is retried by the next publish.
func (p *Publisher) deleteStale(ctx context.Context, planningID uuid.UUID, report *PublishReport, errs *[]error) error {
	stale, err := p.plannings.StaleCalendarEvents(ctx, planningID)
	if err != nil {
		return fmt.Errorf("failed to list stale calendar events: %w", err)
	}
	for _, eventID := range stale {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := p.events.DeleteEvent(ctx, p.calendarID, eventID); err != nil {
			report.Failed++
			*errs = append(*errs, fmt.Errorf("event %s: %w", eventID, err))
			p.logger.Warn("calendar_event_delete_failed",
				zap.String("planning_id", planningID.String()),
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			continue
		}
		if err := p.plannings.ClearStaleCalendarEvent(ctx, planningID, eventID); err != nil {
			report.Failed++
			*errs = append(*errs, fmt.Errorf("event %s: %w", eventID, err))
			continue
		}
		report.Deleted++
	}
	return nil
}
