package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/planning"
	"github.com/benvon/voice-planner/internal/validation"
	"github.com/google/uuid"
)

var (
	// ErrInvalidTask wraps every rejected task of a request
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD
	ErrInvalidDate = errors.New("invalid date")
)

// Minutes is a duration in minutes. Clients send it as a JSON number or a
// numeric string.
type Minutes int

// UnmarshalJSON accepts 30, 30.0 and "30"
func (m *Minutes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("duration must be a number of minutes, got %s", string(data))
	}
	*m = Minutes(int(f + 0.5))
	return nil
}

// TaskRequest is a task as sent by clients, before boundary validation
type TaskRequest struct {
	Title         string             `json:"title" validate:"required,max=200"`
	Description   string             `json:"description,omitempty" validate:"max=2000"`
	Priority      models.Priority    `json:"priority" validate:"required,priority"`
	Duration      Minutes            `json:"duration" validate:"min=1,max=1440"`
	Deadline      string             `json:"deadline,omitempty"`
	SuggestedTime string             `json:"suggestedTime,omitempty"`
	Category      string             `json:"category,omitempty"`
	DependsOn     string             `json:"dependsOn,omitempty"`
	RequiresFocus bool               `json:"requiresFocus,omitempty"`
	Location      string             `json:"location,omitempty"`
	EnergyLevel   models.EnergyLevel `json:"energyLevel,omitempty"`
	RoutineID     *uuid.UUID         `json:"routineId,omitempty"`
}

// toInput rejects tasks with a bad title, priority or duration. Optional
// fields that fail to parse are dropped with a warning; an unknown energy
// level falls back to MEDIUM.
func (tr TaskRequest) toInput(loc *time.Location) (models.TaskInput, []planning.Warning, error) {
	tr.Title = validation.SanitizeText(tr.Title)
	tr.Priority = models.Priority(strings.ToUpper(string(tr.Priority)))
	if err := validation.Struct(tr); err != nil {
		return models.TaskInput{}, nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}

	in := models.TaskInput{
		Title:         tr.Title,
		Description:   tr.Description,
		Priority:      tr.Priority,
		Duration:      int(tr.Duration),
		SuggestedTime: strings.TrimSpace(tr.SuggestedTime),
		Category:      strings.ToLower(strings.TrimSpace(tr.Category)),
		DependsOn:     strings.TrimSpace(tr.DependsOn),
		RequiresFocus: tr.RequiresFocus,
		Location:      tr.Location,
		EnergyLevel:   models.EnergyLevel(strings.ToUpper(string(tr.EnergyLevel))),
		RoutineID:     tr.RoutineID,
	}
	if !in.EnergyLevel.Valid() {
		in.EnergyLevel = models.EnergyMedium
	}

	var warnings []planning.Warning
	if tr.Deadline != "" {
		d, ok := clock.ParseDeadline(tr.Deadline, loc)
		if ok {
			in.Deadline = &d
		} else {
			warnings = append(warnings, planning.Warning{
				Code:   planning.WarnDeadlineInvalid,
				Task:   in.Title,
				Detail: "deadline " + tr.Deadline + " could not be parsed and was dropped",
			})
		}
	}
	// Malformed suggested times are dropped by the engine with their own warning.
	return in, warnings, nil
}

// GenerateRequest asks for a planning proposal
type GenerateRequest struct {
	// Date is YYYY-MM-DD in the user's timezone; empty lets the engine pick
	Date  string        `json:"date,omitempty"`
	Tasks []TaskRequest `json:"tasks"`
	// IncludeRoutines defaults to true when omitted
	IncludeRoutines *bool `json:"includeRoutines,omitempty"`
}

// GenerateResult is a planning proposal
type GenerateResult struct {
	Date     string               `json:"date"`
	Tasks    []models.PlannedTask `json:"tasks"`
	Warnings []planning.Warning   `json:"warnings,omitempty"`
}

// PlannedTaskRequest is a task of a proposal the user accepted
type PlannedTaskRequest struct {
	TaskRequest
	ScheduledAt time.Time `json:"scheduledAt"`
	Deferred    bool      `json:"deferred,omitempty"`
}

// ValidateRequest accepts a proposal. RoutineRenewals left out entirely
// means the user has not been asked about expiring routines yet.
type ValidateRequest struct {
	Date            string                   `json:"date"`
	Tasks           []PlannedTaskRequest     `json:"tasks"`
	RoutineRenewals []models.RenewalDecision `json:"routineRenewals,omitempty"`
}

// ValidateResult either asks for renewal decisions or carries the saved planning
type ValidateResult struct {
	RequiresRenewalDecision bool                     `json:"requiresRenewalDecision"`
	ExpiringRoutines        []models.ExpiringRoutine `json:"expiringRoutines,omitempty"`
	Planning                *models.Planning         `json:"planning,omitempty"`
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(clock.DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q must be YYYY-MM-DD", ErrInvalidDate, s)
	}
	return d, nil
}
