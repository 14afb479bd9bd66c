package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// PlanningStatus is the status of a saved planning
type PlanningStatus string

const (
	PlanningDraft     PlanningStatus = "DRAFT"
	PlanningValidated PlanningStatus = "VALIDATED"
)

// Planning is the finalized set of planned tasks of a user for one date
type Planning struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	Date      string         `json:"date"` // YYYY-MM-DD
	Status    PlanningStatus `json:"status"`
	Tasks     []PlannedTask  `json:"tasks"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	// StaleEventIDs are calendar events of replaced tasks still to be removed
	StaleEventIDs []string `json:"-"`
}

type slotKey struct {
	title    string
	start    int64
	duration int
}

func keyOf(t PlannedTask) slotKey {
	return slotKey{title: t.Title, start: t.ScheduledAt.UnixNano(), duration: t.Duration}
}

// CarryCalendarEvents links the tasks of a replacement planning to the
// calendar events of the tasks they replace. A task with the same title,
// start and duration as a previous published task takes over its ID and
// event ID. Events of previous tasks left without a match are returned
// so they can be deleted from the calendar.
func CarryCalendarEvents(previous []PlannedTask, next []PlannedTask) []string {
	published := make(map[slotKey][]PlannedTask)
	for _, t := range previous {
		if t.CalendarEventID == nil || t.Deferred {
			continue
		}
		k := keyOf(t)
		published[k] = append(published[k], t)
	}

	for i := range next {
		t := &next[i]
		if t.CalendarEventID != nil || t.Deferred {
			continue
		}
		k := keyOf(*t)
		candidates := published[k]
		if len(candidates) == 0 {
			continue
		}
		match := candidates[0]
		published[k] = candidates[1:]
		t.ID = match.ID
		eventID := *match.CalendarEventID
		t.CalendarEventID = &eventID
	}

	var stale []string
	for _, t := range previous {
		if t.CalendarEventID == nil || t.Deferred {
			continue
		}
		if slices.ContainsFunc(published[keyOf(t)], func(left PlannedTask) bool { return left.ID == t.ID }) {
			stale = append(stale, *t.CalendarEventID)
		}
	}
	return stale
}

// DaySummary aggregates one calendar day for the month view
type DaySummary struct {
	Date            string   `json:"date"`
	Count           int      `json:"count"`
	HighestPriority Priority `json:"highestPriority,omitempty"`
	Validated       bool     `json:"validated"`
}
