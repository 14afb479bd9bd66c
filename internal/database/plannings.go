package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/google/uuid"
)

// PlanningRepository handles planning database operations
type PlanningRepository struct {
	db *DB
}

// NewPlanningRepository creates a new planning repository
func NewPlanningRepository(db *DB) *PlanningRepository {
	return &PlanningRepository{db: db}
}

// Upsert stores the planning of a user for its date, replacing any
// previous tasks for that date. Task IDs are assigned when missing.
// Replaced tasks keep their calendar events when title, start and
// duration are unchanged; the events of the others are queued for deletion.
func (r *PlanningRepository) Upsert(ctx context.Context, p *models.Planning) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin planning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO plannings (id, user_id, date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, date) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, p.ID, p.UserID, p.Date, p.Status, now).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert planning: %w", err)
	}

	previous, err := scanPlannedTasks(tx.QueryContext(ctx, plannedTasksQuery+` FOR UPDATE`, p.ID))
	if err != nil {
		return err
	}
	p.StaleEventIDs = models.CarryCalendarEvents(previous, p.Tasks)

	if _, err := tx.ExecContext(ctx, `DELETE FROM planned_tasks WHERE planning_id = $1`, p.ID); err != nil {
		return fmt.Errorf("failed to clear planned tasks: %w", err)
	}
	for _, eventID := range p.StaleEventIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stale_calendar_events (planning_id, event_id) VALUES ($1, $2)
			ON CONFLICT (planning_id, event_id) DO NOTHING
		`, p.ID, eventID)
		if err != nil {
			return fmt.Errorf("failed to record stale calendar event: %w", err)
		}
	}

	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO planned_tasks (id, planning_id, position, title, description, priority, duration,
				deadline, scheduled_at, category, depends_on, requires_focus, location, energy_level,
				routine_id, deferred, calendar_event_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			t.ID,
			p.ID,
			i,
			t.Title,
			nullString(t.Description),
			t.Priority,
			t.Duration,
			t.Deadline,
			t.ScheduledAt,
			nullString(t.Category),
			nullString(t.DependsOn),
			t.RequiresFocus,
			nullString(t.Location),
			t.EnergyLevel,
			t.RoutineID,
			t.Deferred,
			t.CalendarEventID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert planned task %q: %w", t.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit planning: %w", err)
	}
	return nil
}

// GetByDate returns the planning of a user for a YYYY-MM-DD date
func (r *PlanningRepository) GetByDate(ctx context.Context, userID uuid.UUID, date string) (*models.Planning, error) {
	return r.getOne(ctx, `WHERE user_id = $1 AND date = $2::date`, userID, date)
}

// GetByID returns a planning with its tasks
func (r *PlanningRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Planning, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *PlanningRepository) getOne(ctx context.Context, where string, args ...any) (*models.Planning, error) {
	p := &models.Planning{}
	query := `SELECT id, user_id, to_char(date, 'YYYY-MM-DD'), status, created_at, updated_at FROM plannings ` + where

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.UserID,
		&p.Date,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get planning: %w", err)
	}

	tasks, err := r.tasks(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return p, nil
}

const plannedTasksQuery = `
	SELECT id, title, description, priority, duration, deadline, scheduled_at, category,
		depends_on, requires_focus, location, energy_level, routine_id, deferred, calendar_event_id
	FROM planned_tasks
	WHERE planning_id = $1
	ORDER BY scheduled_at ASC, position ASC`

func (r *PlanningRepository) tasks(ctx context.Context, planningID uuid.UUID) ([]models.PlannedTask, error) {
	return scanPlannedTasks(r.db.QueryContext(ctx, plannedTasksQuery, planningID))
}

func scanPlannedTasks(rows *sql.Rows, err error) ([]models.PlannedTask, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to list planned tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []models.PlannedTask{}
	for rows.Next() {
		var t models.PlannedTask
		var description, category, dependsOn, location, eventID sql.NullString
		var deadline sql.NullTime
		var routineID uuid.NullUUID

		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&description,
			&t.Priority,
			&t.Duration,
			&deadline,
			&t.ScheduledAt,
			&category,
			&dependsOn,
			&t.RequiresFocus,
			&location,
			&t.EnergyLevel,
			&routineID,
			&t.Deferred,
			&eventID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan planned task: %w", err)
		}

		t.Description = description.String
		t.Category = category.String
		t.DependsOn = dependsOn.String
		t.Location = location.String
		if deadline.Valid {
			d := deadline.Time
			t.Deadline = &d
		}
		if routineID.Valid {
			id := routineID.UUID
			t.RoutineID = &id
		}
		if eventID.Valid {
			e := eventID.String
			t.CalendarEventID = &e
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate planned tasks: %w", err)
	}
	return tasks, nil
}

// MonthSummary aggregates saved plannings of a user over [from, to] dates
func (r *PlanningRepository) MonthSummary(ctx context.Context, userID uuid.UUID, from, to string) ([]models.DaySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT to_char(p.date, 'YYYY-MM-DD'),
			COUNT(t.id),
			COALESCE(MAX(CASE t.priority
				WHEN 'URGENT' THEN 4
				WHEN 'HIGH' THEN 3
				WHEN 'MEDIUM' THEN 2
				WHEN 'LOW' THEN 1
				ELSE 0 END), 0),
			p.status = 'VALIDATED'
		FROM plannings p
		LEFT JOIN planned_tasks t ON t.planning_id = p.id AND t.deferred = FALSE
		WHERE p.user_id = $1 AND p.date BETWEEN $2::date AND $3::date
		GROUP BY p.date, p.status
		ORDER BY p.date
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize plannings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.DaySummary
	for rows.Next() {
		var s models.DaySummary
		var rank int
		if err := rows.Scan(&s.Date, &s.Count, &rank, &s.Validated); err != nil {
			return nil, fmt.Errorf("failed to scan day summary: %w", err)
		}
		s.HighestPriority = priorityForRank(rank)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate day summaries: %w", err)
	}
	return out, nil
}

func priorityForRank(rank int) models.Priority {
	for _, p := range []models.Priority{models.PriorityUrgent, models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		if p.Rank() == rank {
			return p
		}
	}
	return ""
}

// SetCalendarEventID records the external calendar event created for a task
func (r *PlanningRepository) SetCalendarEventID(ctx context.Context, taskID uuid.UUID, eventID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE planned_tasks SET calendar_event_id = $2 WHERE id = $1`, taskID, eventID)
	if err != nil {
		return fmt.Errorf("failed to set calendar event id: %w", err)
	}
	return requireRow(result, ErrNotFound)
}

// StaleCalendarEvents lists calendar events of replaced tasks of a planning
func (r *PlanningRepository) StaleCalendarEvents(ctx context.Context, planningID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id FROM stale_calendar_events WHERE planning_id = $1 ORDER BY created_at, event_id`, planningID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale calendar events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale calendar event: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale calendar events: %w", err)
	}
	return out, nil
}

// ClearStaleCalendarEvent forgets a stale event once it is gone from the calendar
func (r *PlanningRepository) ClearStaleCalendarEvent(ctx context.Context, planningID uuid.UUID, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM stale_calendar_events WHERE planning_id = $1 AND event_id = $2`, planningID, eventID)
	if err != nil {
		return fmt.Errorf("failed to clear stale calendar event: %w", err)
	}
	return nil
}
