package database

import (
	"context"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/google/uuid"
)

// PreferencesRepositoryInterface defines the preference storage operations
type PreferencesRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Preferences, error)
	Upsert(ctx context.Context, p *models.Preferences) error
}

// PlanningRepositoryInterface defines the planning storage operations
// This interface enables better testability by allowing mock implementations
type PlanningRepositoryInterface interface {
	Upsert(ctx context.Context, p *models.Planning) error
	GetByDate(ctx context.Context, userID uuid.UUID, date string) (*models.Planning, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Planning, error)
	MonthSummary(ctx context.Context, userID uuid.UUID, from, to string) ([]models.DaySummary, error)
	SetCalendarEventID(ctx context.Context, taskID uuid.UUID, eventID string) error
	StaleCalendarEvents(ctx context.Context, planningID uuid.UUID) ([]string, error)
	ClearStaleCalendarEvent(ctx context.Context, planningID uuid.UUID, eventID string) error
}

// UserRepositoryInterface defines the user storage operations
type UserRepositoryInterface interface {
	EnsureExists(ctx context.Context, id uuid.UUID) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Ensure concrete types implement the interfaces
var (
	_ routines.Repository            = (*RoutineRepository)(nil)
	_ PreferencesRepositoryInterface = (*PreferencesRepository)(nil)
	_ PlanningRepositoryInterface    = (*PlanningRepository)(nil)
	_ UserRepositoryInterface        = (*UserRepository)(nil)
)
