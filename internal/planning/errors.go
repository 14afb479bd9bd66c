package planning

import (
	"errors"
	"fmt"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
)

// ErrNothingToPlan reports that the merged task set for a date is empty.
// It is a user-actionable condition, not a system fault.
var ErrNothingToPlan = errors.New("nothing to plan for this date")

// NothingToPlanError carries the context of an empty planning request
type NothingToPlanError struct {
	Date            time.Time
	IncludeRoutines bool
}

func (e *NothingToPlanError) Error() string {
	if e.IncludeRoutines {
		return fmt.Sprintf("no tasks to plan for %s: active routines do not generate tasks on this date", e.Date.Format(clock.DateLayout))
	}
	return fmt.Sprintf("no tasks provided for %s", e.Date.Format(clock.DateLayout))
}

// Is matches ErrNothingToPlan
func (e *NothingToPlanError) Is(target error) bool {
	return target == ErrNothingToPlan
}

// WarningCode classifies soft failures raised during a planning run
type WarningCode string

const (
	WarnDependencyMissing   WarningCode = "dependency_missing"
	WarnDependencySelf      WarningCode = "dependency_self"
	WarnDependencyCycle     WarningCode = "dependency_cycle"
	WarnSuggestedTimeDrop   WarningCode = "suggested_time_invalid"
	WarnInvalidDuration     WarningCode = "duration_invalid"
	WarnTaskDeferred        WarningCode = "task_deferred"
	WarnDailyLimitExceeded  WarningCode = "daily_limit_exceeded"
	WarnInvalidPreferences  WarningCode = "preferences_invalid"
	WarnSuggestedTimeMissed WarningCode = "suggested_time_unavailable"
	WarnDeadlineMissed      WarningCode = "deadline_missed"
	WarnDeadlineInvalid     WarningCode = "deadline_invalid"
)

// Warning is a soft failure that did not stop planning
type Warning struct {
	Code   WarningCode `json:"code"`
	Task   string      `json:"task,omitempty"`
	Detail string      `json:"detail,omitempty"`
}
