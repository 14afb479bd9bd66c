package models

import (
	"time"

	"github.com/google/uuid"
)

// Preference defaults used when a user has not configured a value
const (
	DefaultWorkHoursStart        = "09:00"
	DefaultWorkHoursEnd          = "17:00"
	DefaultLunchBreakStart       = "12:00"
	DefaultLunchBreakEnd         = "13:00"
	DefaultPreferredTaskDuration = 30
	DefaultTaskBufferMinutes     = 15
	DefaultTimezone              = "UTC"
)

// Preferences holds the planning constraints of a user
type Preferences struct {
	UserID                uuid.UUID      `json:"userId" yaml:"-"`
	WorkHoursStart        string         `json:"workHoursStart" yaml:"workHoursStart" validate:"clock"`
	WorkHoursEnd          string         `json:"workHoursEnd" yaml:"workHoursEnd" validate:"clock"`
	LunchBreakStart       string         `json:"lunchBreakStart" yaml:"lunchBreakStart" validate:"clock"`
	LunchBreakEnd         string         `json:"lunchBreakEnd" yaml:"lunchBreakEnd" validate:"clock"`
	LunchBreakEnabled     bool           `json:"lunchBreakEnabled" yaml:"lunchBreakEnabled"`
	PreferredTaskDuration int            `json:"preferredTaskDuration" yaml:"preferredTaskDuration" validate:"min=1,max=1440"`
	CategoryDurations     map[string]int `json:"categoryDurations" yaml:"categoryDurations" validate:"dive,min=1,max=1440"`
	TaskBufferMinutes     int            `json:"taskBufferMinutes" yaml:"taskBufferMinutes" validate:"min=0,max=240"`
	WorkDays              []Weekday      `json:"workDays" yaml:"workDays" validate:"dive,weekday"`
	EnergyMorning         EnergyLevel    `json:"energyMorning" yaml:"energyMorning" validate:"energy_level"`
	EnergyAfternoon       EnergyLevel    `json:"energyAfternoon" yaml:"energyAfternoon" validate:"energy_level"`
	EnergyEvening         EnergyLevel    `json:"energyEvening" yaml:"energyEvening" validate:"energy_level"`
	MaxTasksPerDay        *int           `json:"maxTasksPerDay,omitempty" yaml:"maxTasksPerDay,omitempty" validate:"omitempty,min=1,max=100"`
	AllowTaskOverlap      bool           `json:"allowTaskOverlap" yaml:"allowTaskOverlap"`
	Timezone              string         `json:"timezone" yaml:"timezone" validate:"timezone"`
	UpdatedAt             time.Time      `json:"updatedAt,omitempty" yaml:"-"`
}

// DefaultPreferences returns the preferences used for a user that has none.
// Decoding a partial document on top of the result keeps defaults for absent fields.
func DefaultPreferences(userID uuid.UUID) Preferences {
	return Preferences{
		UserID:                userID,
		WorkHoursStart:        DefaultWorkHoursStart,
		WorkHoursEnd:          DefaultWorkHoursEnd,
		LunchBreakStart:       DefaultLunchBreakStart,
		LunchBreakEnd:         DefaultLunchBreakEnd,
		LunchBreakEnabled:     true,
		PreferredTaskDuration: DefaultPreferredTaskDuration,
		CategoryDurations:     map[string]int{},
		TaskBufferMinutes:     DefaultTaskBufferMinutes,
		WorkDays:              []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday},
		EnergyMorning:         EnergyMedium,
		EnergyAfternoon:       EnergyMedium,
		EnergyEvening:         EnergyLow,
		Timezone:              DefaultTimezone,
	}
}

// Normalize fills zero values left by partial storage rows with defaults.
// A zero buffer is a legitimate setting and is kept.
func (p Preferences) Normalize() Preferences {
	d := DefaultPreferences(p.UserID)
	if p.WorkHoursStart == "" {
		p.WorkHoursStart = d.WorkHoursStart
	}
	if p.WorkHoursEnd == "" {
		p.WorkHoursEnd = d.WorkHoursEnd
	}
	if p.LunchBreakStart == "" {
		p.LunchBreakStart = d.LunchBreakStart
	}
	if p.LunchBreakEnd == "" {
		p.LunchBreakEnd = d.LunchBreakEnd
	}
	if p.PreferredTaskDuration <= 0 {
		p.PreferredTaskDuration = d.PreferredTaskDuration
	}
	if p.CategoryDurations == nil {
		p.CategoryDurations = d.CategoryDurations
	}
	if p.TaskBufferMinutes < 0 {
		p.TaskBufferMinutes = 0
	}
	if p.WorkDays == nil {
		p.WorkDays = d.WorkDays
	}
	if !p.EnergyMorning.Valid() {
		p.EnergyMorning = d.EnergyMorning
	}
	if !p.EnergyAfternoon.Valid() {
		p.EnergyAfternoon = d.EnergyAfternoon
	}
	if !p.EnergyEvening.Valid() {
		p.EnergyEvening = d.EnergyEvening
	}
	if p.MaxTasksPerDay != nil && *p.MaxTasksPerDay <= 0 {
		p.MaxTasksPerDay = nil
	}
	if p.Timezone == "" {
		p.Timezone = d.Timezone
	}
	return p
}

// Location resolves the preference timezone, falling back to UTC
func (p Preferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DurationFor returns the default duration for a task category:
// the category override, then the preferred duration, then 30 minutes.
func (p Preferences) DurationFor(category string) int {
	if category != "" {
		if d, ok := p.CategoryDurations[category]; ok && d > 0 {
			return d
		}
	}
	if p.PreferredTaskDuration > 0 {
		return p.PreferredTaskDuration
	}
	return DefaultPreferredTaskDuration
}
