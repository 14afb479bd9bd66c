// Package routines decides when recurring routines fire and manages their
// expiration and renewal.
package routines

import (
	"time"
	"unicode/utf16"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
)

// maxOccurrenceDays bounds Occurrences ranges
const maxOccurrenceDays = 62

// ShouldFire reports whether the routine produces a task on the calendar day of date.
// The weekday is taken in date's location.
func ShouldFire(r *models.Routine, date time.Time) bool {
	day := models.WeekdayOf(date)
	switch r.Frequency {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekdays:
		return day != models.Saturday && day != models.Sunday
	case models.FrequencyWeekends:
		return day == models.Saturday || day == models.Sunday
	case models.FrequencyWeekly, models.FrequencyCustom:
		return r.HasDay(day)
	default:
		return false
	}
}

// SlotMinute returns the minute of day the routine starts at. An explicit time
// wins; otherwise the time is derived from the title.
func SlotMinute(r *models.Routine) int {
	if r.Time != "" {
		if m, err := clock.Parse(r.Time); err == nil {
			return m
		}
	}
	return TitleSlot(r.Title)
}

// TitleSlot spreads untimed routines over the working day: the sum of the
// title's UTF-16 code units picks hour 9+sum%9 and quarter (sum%4)*15.
// Existing routines depend on this exact mapping.
func TitleSlot(title string) int {
	sum := 0
	for _, u := range utf16.Encode([]rune(title)) {
		sum += int(u)
	}
	return (9+sum%9)*60 + (sum%4)*15
}

// ComputeSlot returns the start instant of the routine on the calendar day of date
func ComputeSlot(r *models.Routine, date time.Time) time.Time {
	return clock.On(date, SlotMinute(r))
}

// Generates reports whether the routine may generate tasks at now.
// Inactive routines and routines whose expiry has passed never generate.
func Generates(r *models.Routine, now time.Time) bool {
	return r.IsActive && r.ExpiresAt.After(now)
}

// GenerateTasks returns the tasks produced by routines on the calendar day of date.
// Expired routines are filtered before the recurrence rule is evaluated.
func GenerateTasks(routines []*models.Routine, date, now time.Time) []models.TaskInput {
	var tasks []models.TaskInput
	for _, r := range routines {
		if r == nil || !Generates(r, now) {
			continue
		}
		if !ShouldFire(r, date) {
			continue
		}
		tasks = append(tasks, taskFor(r))
	}
	return tasks
}

func taskFor(r *models.Routine) models.TaskInput {
	id := r.ID
	priority := r.Priority
	if !priority.Valid() {
		priority = models.PriorityMedium
	}
	// Out of range durations are left to the preference defaults.
	duration := r.Duration
	if duration < models.MinTaskDuration || duration > models.MaxTaskDuration {
		duration = 0
	}
	return models.TaskInput{
		Title:         r.Title,
		Description:   r.Description,
		Priority:      priority,
		Duration:      duration,
		SuggestedTime: clock.Format(SlotMinute(r)),
		Category:      models.RoutineCategory,
		EnergyLevel:   models.EnergyMedium,
		RoutineID:     &id,
	}
}

// Occurrences returns routine tasks keyed by date (YYYY-MM-DD) for every day in
// [from, to] inclusive, evaluated in loc. Ranges are capped at 62 days.
func Occurrences(routines []*models.Routine, from, to, now time.Time, loc *time.Location) map[string][]models.TaskInput {
	out := make(map[string][]models.TaskInput)
	day := clock.Midnight(from, loc)
	last := clock.Midnight(to, loc)
	for i := 0; i < maxOccurrenceDays && !day.After(last); i++ {
		if tasks := GenerateTasks(routines, day, now); len(tasks) > 0 {
			out[day.Format(clock.DateLayout)] = tasks
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}
