package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RoutineRepository handles routine database operations
type RoutineRepository struct {
	db *DB
}

// NewRoutineRepository creates a new routine repository
func NewRoutineRepository(db *DB) *RoutineRepository {
	return &RoutineRepository{db: db}
}

const routineColumns = `id, user_id, title, description, frequency, time, days_of_week, duration,
	priority, is_active, expires_at, auto_renew, renewal_asked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoutine(row rowScanner) (*models.Routine, error) {
	r := &models.Routine{}
	var description, clockTime sql.NullString
	var days pq.StringArray
	var asked sql.NullTime

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Title,
		&description,
		&r.Frequency,
		&clockTime,
		&days,
		&r.Duration,
		&r.Priority,
		&r.IsActive,
		&r.ExpiresAt,
		&r.AutoRenew,
		&asked,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Description = description.String
	r.Time = clockTime.String
	r.DaysOfWeek = make([]models.Weekday, 0, len(days))
	for _, d := range days {
		r.DaysOfWeek = append(r.DaysOfWeek, models.Weekday(d))
	}
	if asked.Valid {
		t := asked.Time
		r.RenewalAskedAt = &t
	}
	return r, nil
}

func weekdayArray(days []models.Weekday) pq.StringArray {
	out := make(pq.StringArray, 0, len(days))
	for _, d := range days {
		out = append(out, string(d))
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *RoutineRepository) query(ctx context.Context, query string, args ...any) ([]*models.Routine, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Routine
	for rows.Next() {
		routine, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		out = append(out, routine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routines: %w", err)
	}
	return out, nil
}

// Create inserts a new routine
func (r *RoutineRepository) Create(ctx context.Context, routine *models.Routine) error {
	query := `
		INSERT INTO routines (id, user_id, title, description, frequency, time, days_of_week, duration,
			priority, is_active, expires_at, auto_renew, renewal_asked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	now := time.Now()
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = now
	}
	routine.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		routine.ID,
		routine.UserID,
		routine.Title,
		nullString(routine.Description),
		routine.Frequency,
		nullString(routine.Time),
		weekdayArray(routine.DaysOfWeek),
		routine.Duration,
		routine.Priority,
		routine.IsActive,
		routine.ExpiresAt,
		routine.AutoRenew,
		routine.RenewalAskedAt,
		routine.CreatedAt,
		routine.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create routine: %w", err)
	}
	return nil
}

// GetByID retrieves a routine by ID
func (r *RoutineRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE id = $1`

	routine, err := scanRoutine(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, routines.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}
	return routine, nil
}

// ListByUser returns the routines of a user, newest first
func (r *RoutineRepository) ListByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.Routine, error) {
	query := `SELECT ` + routineColumns + ` FROM routines WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	out, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routines: %w", err)
	}
	return out, nil
}

// ListDue returns active routines whose expiry has passed, oldest expiry first
func (r *RoutineRepository) ListDue(ctx context.Context, userID *uuid.UUID, now time.Time) ([]*models.Routine, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + routineColumns + ` FROM routines WHERE is_active = TRUE AND expires_at < $1`)
	args := []any{now}
	if userID != nil {
		b.WriteString(` AND user_id = $2`)
		args = append(args, *userID)
	}
	b.WriteString(` ORDER BY expires_at ASC`)

	out, err := r.query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due routines: %w", err)
	}
	return out, nil
}

// ListExpiring returns active routines expiring in [now, until] that the
// user has not been asked about in this cycle
func (r *RoutineRepository) ListExpiring(ctx context.Context, userID *uuid.UUID, now, until time.Time) ([]*models.Routine, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + routineColumns + ` FROM routines
		WHERE is_active = TRUE AND renewal_asked_at IS NULL
		AND expires_at >= $1 AND expires_at <= $2`)
	args := []any{now, until}
	if userID != nil {
		b.WriteString(` AND user_id = $3`)
		args = append(args, *userID)
	}
	b.WriteString(` ORDER BY expires_at ASC`)

	out, err := r.query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring routines: %w", err)
	}
	return out, nil
}

// Update replaces the editable fields of a routine
func (r *RoutineRepository) Update(ctx context.Context, routine *models.Routine) error {
	query := `
		UPDATE routines
		SET title = $2, description = $3, frequency = $4, time = $5, days_of_week = $6,
			duration = $7, priority = $8, is_active = $9, auto_renew = $10, updated_at = $11
		WHERE id = $1
	`

	routine.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		routine.ID,
		routine.Title,
		nullString(routine.Description),
		routine.Frequency,
		nullString(routine.Time),
		weekdayArray(routine.DaysOfWeek),
		routine.Duration,
		routine.Priority,
		routine.IsActive,
		routine.AutoRenew,
		routine.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update routine: %w", err)
	}
	return requireRow(result, routines.ErrNotFound)
}

// Delete removes a routine
func (r *RoutineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM routines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}
	return requireRow(result, routines.ErrNotFound)
}

// SetActive toggles is_active without touching the expiry
func (r *RoutineRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE routines SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to set routine active: %w", err)
	}
	return requireRow(result, routines.ErrNotFound)
}

// CompareAndRenew moves expires_at from expected to next and clears
// renewal_asked_at. It reports false when expires_at no longer matches.
func (r *RoutineRepository) CompareAndRenew(ctx context.Context, id uuid.UUID, expected, next time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE routines
		SET expires_at = $3, renewal_asked_at = NULL, updated_at = NOW()
		WHERE id = $1 AND expires_at = $2
	`, id, expected, next)
	if err != nil {
		return false, fmt.Errorf("failed to renew routine: %w", err)
	}
	return affected(result)
}

// CompareAndDeactivate deactivates a routine still active at the expected expiry
func (r *RoutineRepository) CompareAndDeactivate(ctx context.Context, id uuid.UUID, expected time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE routines
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND expires_at = $2 AND is_active = TRUE
	`, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate routine: %w", err)
	}
	return affected(result)
}

// CompareAndMarkAsked stamps renewal_asked_at for the expected expiry cycle
func (r *RoutineRepository) CompareAndMarkAsked(ctx context.Context, id uuid.UUID, expected, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE routines
		SET renewal_asked_at = $3, updated_at = NOW()
		WHERE id = $1 AND expires_at = $2
	`, id, expected, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark routine renewal asked: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func requireRow(result sql.Result, notFound error) error {
	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return nil
}
