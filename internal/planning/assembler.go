// Package planning turns a day's one-off tasks and routines into an ordered,
// time-bound schedule.
package planning

import (
	"context"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/logger"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/routines"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/voice-planner/internal/planning"

// Request is one planning run
type Request struct {
	// Date is the planning day. When nil the earliest task deadline is used,
	// then today in the preference timezone.
	Date            *time.Time
	Tasks           []models.TaskInput
	Routines        []*models.Routine
	IncludeRoutines bool
	Preferences     models.Preferences
}

// Result is the outcome of a planning run
type Result struct {
	Date     time.Time            `json:"date"`
	Tasks    []models.PlannedTask `json:"tasks"`
	Warnings []Warning            `json:"warnings,omitempty"`
}

// Engine assembles plannings. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a planning engine
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{logger: log, now: time.Now}
}

// TargetDate resolves the planning day in loc: the explicit date, else the
// earliest deadline among tasks, else today.
func TargetDate(explicit *time.Time, tasks []models.TaskInput, now time.Time, loc *time.Location) time.Time {
	if explicit != nil {
		return clock.Midnight(*explicit, loc)
	}
	var earliest *time.Time
	for i := range tasks {
		d := tasks[i].Deadline
		if d != nil && (earliest == nil || d.Before(*earliest)) {
			earliest = d
		}
	}
	if earliest != nil {
		return clock.Midnight(*earliest, loc)
	}
	return clock.Midnight(now, loc)
}

// Generate merges routine tasks into the request, applies defaults, then
// resolves dependencies, orders and places every task. An empty merged set
// returns a *NothingToPlanError.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "planning.generate")
	defer span.End()

	prefs := req.Preferences.Normalize()
	loc := prefs.Location()
	now := e.now()
	date := TargetDate(req.Date, req.Tasks, now, loc)

	tasks := make([]models.TaskInput, 0, len(req.Tasks))
	tasks = append(tasks, req.Tasks...)
	if req.IncludeRoutines {
		tasks = append(tasks, routines.GenerateTasks(req.Routines, date, now)...)
	}
	if len(tasks) == 0 {
		return nil, &NothingToPlanError{Date: date, IncludeRoutines: req.IncludeRoutines}
	}

	constraints, warnings := NewConstraints(prefs)
	warnings = append(warnings, applyDefaults(tasks, prefs)...)

	resolved, depWarnings := ResolveDependencies(tasks)
	warnings = append(warnings, depWarnings...)
	if !constraints.AllowOverlap {
		warnings = append(warnings, DedupSuggestedTimes(resolved)...)
	}
	SortTasks(resolved)

	planned, allocWarnings := Allocate(date, resolved, constraints)
	warnings = append(warnings, allocWarnings...)

	deferred := 0
	for _, t := range planned {
		if t.Deferred {
			deferred++
		}
	}
	for _, w := range warnings {
		e.logger.Warn("planning_warning",
			zap.String("code", string(w.Code)),
			zap.String("task", logger.SanitizeTitle(w.Task)),
			zap.String("detail", logger.SanitizeString(w.Detail, 0)),
		)
	}
	span.SetAttributes(
		attribute.String("planning.date", date.Format(clock.DateLayout)),
		attribute.Int("planning.tasks", len(planned)),
		attribute.Int("planning.deferred", deferred),
		attribute.Int("planning.warnings", len(warnings)),
	)
	e.logger.Info("planning_generated",
		zap.String("date", date.Format(clock.DateLayout)),
		zap.Int("tasks", len(planned)),
		zap.Int("deferred", deferred),
		zap.Int("warnings", len(warnings)),
	)

	return &Result{Date: date, Tasks: planned, Warnings: warnings}, nil
}

// applyDefaults fills missing durations, priorities and energy levels and
// drops malformed suggested times.
func applyDefaults(tasks []models.TaskInput, prefs models.Preferences) []Warning {
	var warnings []Warning
	for i := range tasks {
		t := &tasks[i]
		if t.Duration == 0 {
			t.Duration = prefs.DurationFor(t.Category)
		}
		if !t.Priority.Valid() {
			t.Priority = models.PriorityMedium
		}
		if !t.EnergyLevel.Valid() {
			t.EnergyLevel = models.EnergyMedium
		}
		if t.SuggestedTime != "" && !clock.Valid(t.SuggestedTime) {
			warnings = append(warnings, Warning{
				Code:   WarnSuggestedTimeDrop,
				Task:   t.Title,
				Detail: "suggested time " + t.SuggestedTime + " is not HH:mm and was dropped",
			})
			t.SuggestedTime = ""
		}
	}
	return warnings
}
