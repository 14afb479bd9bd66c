package models

import (
	"time"

	"github.com/google/uuid"
)

// Frequency is the recurrence rule of a routine
type Frequency string

const (
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyWeekdays Frequency = "WEEKDAYS"
	FrequencyWeekends Frequency = "WEEKENDS"
	FrequencyCustom   Frequency = "CUSTOM"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyWeekdays, FrequencyWeekends, FrequencyCustom:
		return true
	default:
		return false
	}
}

// RequiresDays reports whether the frequency needs an explicit set of weekdays
func (f Frequency) RequiresDays() bool {
	return f == FrequencyWeekly || f == FrequencyCustom
}

// Weekday is an upper-case English weekday name
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// weekdays is indexed by time.Weekday
var weekdays = [...]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf returns the weekday name of t in its own location
func WeekdayOf(t time.Time) Weekday {
	return weekdays[t.Weekday()]
}

// Valid reports whether w is a known weekday name
func (w Weekday) Valid() bool {
	for _, d := range weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// Routine is a persistent template that generates recurring tasks
type Routine struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Frequency      Frequency  `json:"frequency"`
	Time           string     `json:"time,omitempty"`
	DaysOfWeek     []Weekday  `json:"daysOfWeek"`
	Duration       int        `json:"duration"`
	Priority       Priority   `json:"priority"`
	IsActive       bool       `json:"isActive"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	AutoRenew      bool       `json:"autoRenew"`
	RenewalAskedAt *time.Time `json:"renewalAskedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// HasDay reports whether w is one of the routine's days
func (r *Routine) HasDay(w Weekday) bool {
	for _, d := range r.DaysOfWeek {
		if d == w {
			return true
		}
	}
	return false
}

// RoutineState is the lifecycle state of a routine at a point in time
type RoutineState string

const (
	RoutineActive       RoutineState = "ACTIVE"
	RoutineExpiringSoon RoutineState = "EXPIRING_SOON"
	// RoutineExpired is an active routine past its expiry that the sweep has not processed yet
	RoutineExpired     RoutineState = "EXPIRED"
	RoutineDeactivated RoutineState = "DEACTIVATED"
)

// State derives the lifecycle state at now. A routine is expiring soon when it
// expires within window and the user has not been asked in this cycle.
func (r *Routine) State(now time.Time, window time.Duration) RoutineState {
	switch {
	case !r.IsActive:
		return RoutineDeactivated
	case r.ExpiresAt.Before(now):
		return RoutineExpired
	case r.RenewalAskedAt == nil && !r.ExpiresAt.After(now.Add(window)):
		return RoutineExpiringSoon
	default:
		return RoutineActive
	}
}

// ExpiringRoutine is surfaced to the user for a renewal decision
type ExpiringRoutine struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Title     string    `json:"title"`
	ExpiresAt time.Time `json:"expiresAt"`
	AutoRenew bool      `json:"autoRenew"`
}

// RenewalDecision is the user's answer for one expiring routine
type RenewalDecision struct {
	RoutineID uuid.UUID `json:"routineId" validate:"required"`
	Renew     bool      `json:"renew"`
}
