package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority ranks how important a task is
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Rank orders priorities, higher is more important. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// EnergyLevel describes the energy a task needs or a user has during part of the day
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "LOW"
	EnergyMedium EnergyLevel = "MEDIUM"
	EnergyHigh   EnergyLevel = "HIGH"
)

// Rank orders energy levels, higher needs more energy. Unknown values rank 0.
func (e EnergyLevel) Rank() int {
	switch e {
	case EnergyHigh:
		return 3
	case EnergyMedium:
		return 2
	case EnergyLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether e is a known energy level
func (e EnergyLevel) Valid() bool {
	return e.Rank() > 0
}

// RoutineCategory is the category assigned to tasks generated from routines
const RoutineCategory = "routine"

// MinTaskDuration and MaxTaskDuration bound a task duration in minutes
const (
	MinTaskDuration = 1
	MaxTaskDuration = 1440
)

// TaskInput is a candidate task before placement.
// Title is the key used by DependsOn references inside one planning run.
type TaskInput struct {
	Title         string      `json:"title" yaml:"title"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	Priority      Priority    `json:"priority" yaml:"priority"`
	Duration      int         `json:"duration" yaml:"duration"`
	Deadline      *time.Time  `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	SuggestedTime string      `json:"suggestedTime,omitempty" yaml:"suggestedTime,omitempty"`
	Category      string      `json:"category,omitempty" yaml:"category,omitempty"`
	DependsOn     string      `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	RequiresFocus bool        `json:"requiresFocus" yaml:"requiresFocus"`
	Location      string      `json:"location,omitempty" yaml:"location,omitempty"`
	EnergyLevel   EnergyLevel `json:"energyLevel" yaml:"energyLevel"`
	RoutineID     *uuid.UUID  `json:"routineId,omitempty" yaml:"routineId,omitempty"`
}

// PlannedTask is a TaskInput bound to a concrete start instant
type PlannedTask struct {
	TaskInput `yaml:",inline"`
	ID          uuid.UUID `json:"id,omitempty" yaml:"-"`
	ScheduledAt time.Time `json:"scheduledAt" yaml:"scheduledAt"`
	// Deferred is set when no slot was found on the planning date and the
	// task was pushed to the next day's work start.
	Deferred        bool    `json:"deferred,omitempty" yaml:"deferred,omitempty"`
	CalendarEventID *string `json:"calendarEventId,omitempty" yaml:"-"`
}

// End returns the instant the task finishes
func (t PlannedTask) End() time.Time {
	return t.ScheduledAt.Add(time.Duration(t.Duration) * time.Minute)
}
