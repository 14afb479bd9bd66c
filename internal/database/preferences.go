package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PreferencesRepository handles user preference database operations
type PreferencesRepository struct {
	db *DB
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(db *DB) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// GetByUserID returns the stored preferences of a user or ErrNotFound
func (r *PreferencesRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Preferences, error) {
	query := `
		SELECT user_id, work_hours_start, work_hours_end, lunch_break_start, lunch_break_end,
			lunch_break_enabled, preferred_task_duration, category_durations, task_buffer_minutes,
			work_days, energy_morning, energy_afternoon, energy_evening, max_tasks_per_day,
			allow_task_overlap, timezone, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`

	p := &models.Preferences{}
	var durationsJSON []byte
	var workDays pq.StringArray
	var maxTasks sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.WorkHoursStart,
		&p.WorkHoursEnd,
		&p.LunchBreakStart,
		&p.LunchBreakEnd,
		&p.LunchBreakEnabled,
		&p.PreferredTaskDuration,
		&durationsJSON,
		&p.TaskBufferMinutes,
		&workDays,
		&p.EnergyMorning,
		&p.EnergyAfternoon,
		&p.EnergyEvening,
		&maxTasks,
		&p.AllowTaskOverlap,
		&p.Timezone,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	if err := json.Unmarshal(durationsJSON, &p.CategoryDurations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal category durations: %w", err)
	}
	p.WorkDays = make([]models.Weekday, 0, len(workDays))
	for _, d := range workDays {
		p.WorkDays = append(p.WorkDays, models.Weekday(d))
	}
	if maxTasks.Valid {
		n := int(maxTasks.Int64)
		p.MaxTasksPerDay = &n
	}
	return p, nil
}

// Upsert stores the full preference document of a user
func (r *PreferencesRepository) Upsert(ctx context.Context, p *models.Preferences) error {
	durationsJSON, err := json.Marshal(p.CategoryDurations)
	if err != nil {
		return fmt.Errorf("failed to marshal category durations: %w", err)
	}

	var maxTasks sql.NullInt64
	if p.MaxTasksPerDay != nil {
		maxTasks = sql.NullInt64{Int64: int64(*p.MaxTasksPerDay), Valid: true}
	}

	query := `
		INSERT INTO user_preferences (user_id, work_hours_start, work_hours_end, lunch_break_start,
			lunch_break_end, lunch_break_enabled, preferred_task_duration, category_durations,
			task_buffer_minutes, work_days, energy_morning, energy_afternoon, energy_evening,
			max_tasks_per_day, allow_task_overlap, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (user_id) DO UPDATE SET
			work_hours_start = EXCLUDED.work_hours_start,
			work_hours_end = EXCLUDED.work_hours_end,
			lunch_break_start = EXCLUDED.lunch_break_start,
			lunch_break_end = EXCLUDED.lunch_break_end,
			lunch_break_enabled = EXCLUDED.lunch_break_enabled,
			preferred_task_duration = EXCLUDED.preferred_task_duration,
			category_durations = EXCLUDED.category_durations,
			task_buffer_minutes = EXCLUDED.task_buffer_minutes,
			work_days = EXCLUDED.work_days,
			energy_morning = EXCLUDED.energy_morning,
			energy_afternoon = EXCLUDED.energy_afternoon,
			energy_evening = EXCLUDED.energy_evening,
			max_tasks_per_day = EXCLUDED.max_tasks_per_day,
			allow_task_overlap = EXCLUDED.allow_task_overlap,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at
	`

	p.UpdatedAt = time.Now()
	_, err = r.db.ExecContext(ctx, query,
		p.UserID,
		p.WorkHoursStart,
		p.WorkHoursEnd,
		p.LunchBreakStart,
		p.LunchBreakEnd,
		p.LunchBreakEnabled,
		p.PreferredTaskDuration,
		durationsJSON,
		p.TaskBufferMinutes,
		weekdayArray(p.WorkDays),
		p.EnergyMorning,
		p.EnergyAfternoon,
		p.EnergyEvening,
		maxTasks,
		p.AllowTaskOverlap,
		p.Timezone,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}
