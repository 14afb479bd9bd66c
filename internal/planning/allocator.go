package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
)

// MaxSearchSteps bounds the next-available-slot search.
const MaxSearchSteps = 1000

const (
	minSearchStep  = 5
	afternoonStart = 12 * 60
	eveningStart   = 17 * 60
)

// Window is a half-open range of minutes of day
type Window struct {
	Start int
	End   int
}

// Contains reports whether minute falls inside w
func (w Window) Contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// Overlaps reports whether [start, end) intersects w
func (w Window) Overlaps(start, end int) bool {
	return start < w.End && end > w.Start
}

// Constraints is the resolved, minute-based form of a user's preferences
type Constraints struct {
	Work         Window
	Lunch        Window
	LunchEnabled bool
	Buffer       int
	AllowOverlap bool
	// MaxTasks caps the tasks placed on the planning date. Zero means no cap.
	MaxTasks int
	// Energy holds the morning, afternoon and evening energy levels.
	Energy [3]models.EnergyLevel
}

// NewConstraints resolves preferences into minute windows. Unparseable or
// inverted windows fall back to defaults and are reported as warnings.
func NewConstraints(p models.Preferences) (Constraints, []Warning) {
	p = p.Normalize()
	var warnings []Warning

	work, err := parseWindow(p.WorkHoursStart, p.WorkHoursEnd)
	if err != nil {
		warnings = append(warnings, Warning{Code: WarnInvalidPreferences, Detail: fmt.Sprintf("work hours: %v", err)})
		work = Window{Start: clock.MustParse(models.DefaultWorkHoursStart), End: clock.MustParse(models.DefaultWorkHoursEnd)}
	}

	c := Constraints{
		Work:         work,
		LunchEnabled: p.LunchBreakEnabled,
		Buffer:       p.TaskBufferMinutes,
		AllowOverlap: p.AllowTaskOverlap,
		Energy:       [3]models.EnergyLevel{p.EnergyMorning, p.EnergyAfternoon, p.EnergyEvening},
	}
	if p.MaxTasksPerDay != nil {
		c.MaxTasks = *p.MaxTasksPerDay
	}

	if c.LunchEnabled {
		lunch, err := parseWindow(p.LunchBreakStart, p.LunchBreakEnd)
		if err != nil {
			warnings = append(warnings, Warning{Code: WarnInvalidPreferences, Detail: fmt.Sprintf("lunch break disabled: %v", err)})
			c.LunchEnabled = false
		} else {
			c.Lunch = lunch
		}
	}

	return c, warnings
}

func parseWindow(start, end string) (Window, error) {
	s, err := clock.Parse(start)
	if err != nil {
		return Window{}, err
	}
	e, err := clock.Parse(end)
	if err != nil {
		return Window{}, err
	}
	if e <= s {
		return Window{}, fmt.Errorf("end %s is not after start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

// fits reports whether a task of duration minutes can start at minute
func (c Constraints) fits(start, duration int) bool {
	end := start + duration
	if start < c.Work.Start || end > c.Work.End {
		return false
	}
	return !c.LunchEnabled || !c.Lunch.Overlaps(start, end)
}

func (c Constraints) step() int {
	if s := c.Buffer / 3; s > minSearchStep {
		return s
	}
	return minSearchStep
}

// search walks forward from minute from until a slot starting before limit
// fits the duration. It gives up after MaxSearchSteps candidates.
func (c Constraints) search(from, limit, duration int) (int, bool) {
	if from < c.Work.Start {
		from = c.Work.Start
	}
	if limit > c.Work.End {
		limit = c.Work.End
	}
	step := c.step()
	m := from
	for i := 0; i < MaxSearchSteps && m < limit; i++ {
		if c.LunchEnabled && c.Lunch.Overlaps(m, m+duration) {
			// Every start before lunch end still overlaps.
			m = c.Lunch.End
			continue
		}
		if c.fits(m, duration) {
			return m, true
		}
		m += step
	}
	return 0, false
}

// energyWindows returns the morning, afternoon and evening windows clipped
// to work hours, paired with the user's configured level for each.
func (c Constraints) energyWindows() ([3]Window, [3]models.EnergyLevel) {
	bounds := [3]Window{
		{Start: c.Work.Start, End: afternoonStart},
		{Start: afternoonStart, End: eveningStart},
		{Start: eveningStart, End: c.Work.End},
	}
	for i := range bounds {
		if bounds[i].Start < c.Work.Start {
			bounds[i].Start = c.Work.Start
		}
		if bounds[i].End > c.Work.End {
			bounds[i].End = c.Work.End
		}
	}
	return bounds, c.Energy
}

// peakSlot places a task inside the highest-energy window of the day that
// has not passed yet, trying equal windows earliest first.
func (c Constraints) peakSlot(cursor, duration int) (int, bool) {
	windows, levels := c.energyWindows()
	peak := 0
	for i, w := range windows {
		if w.End > w.Start && levels[i].Rank() > peak {
			peak = levels[i].Rank()
		}
	}
	for i, w := range windows {
		if w.End <= w.Start || levels[i].Rank() != peak || w.End <= cursor {
			continue
		}
		from := w.Start
		if cursor > from {
			from = cursor
		}
		if m, ok := c.search(from, w.End, duration); ok {
			return m, true
		}
	}
	return 0, false
}

func needsPeak(t models.TaskInput) bool {
	return t.RequiresFocus || t.EnergyLevel == models.EnergyHigh
}

// Allocate binds every task to a start instant on date, which must be the
// midnight of the planning day in the user's location. Tasks that cannot be
// placed are deferred to the next day's work start. The result has one
// entry per input task and is sorted by ScheduledAt.
func Allocate(date time.Time, tasks []models.TaskInput, c Constraints) ([]models.PlannedTask, []Warning) {
	var warnings []Warning
	planned := make([]models.PlannedTask, 0, len(tasks))
	deferredAt := clock.On(date.AddDate(0, 0, 1), c.Work.Start)
	cursor := c.Work.Start
	placed := 0

	deferTask := func(t models.TaskInput, code WarningCode, detail string) {
		planned = append(planned, models.PlannedTask{TaskInput: t, ScheduledAt: deferredAt, Deferred: true})
		warnings = append(warnings, Warning{Code: code, Task: t.Title, Detail: detail})
	}

	for _, t := range tasks {
		if t.Duration < models.MinTaskDuration || t.Duration > models.MaxTaskDuration {
			deferTask(t, WarnInvalidDuration, fmt.Sprintf("duration %d is outside %d-%d minutes", t.Duration, models.MinTaskDuration, models.MaxTaskDuration))
			continue
		}
		if c.MaxTasks > 0 && placed >= c.MaxTasks {
			deferTask(t, WarnDailyLimitExceeded, fmt.Sprintf("daily limit of %d tasks reached", c.MaxTasks))
			continue
		}

		start, ok := -1, false
		if t.SuggestedTime != "" {
			if m, err := clock.Parse(t.SuggestedTime); err == nil {
				if c.LunchEnabled && c.Lunch.Contains(m) {
					m = c.Lunch.End
				}
				if c.fits(m, t.Duration) && (m >= cursor || c.AllowOverlap) {
					start, ok = m, true
				} else {
					warnings = append(warnings, Warning{
						Code:   WarnSuggestedTimeMissed,
						Task:   t.Title,
						Detail: fmt.Sprintf("%s is unavailable, using the next free slot", t.SuggestedTime),
					})
				}
			}
		}
		if !ok && needsPeak(t) {
			start, ok = c.peakSlot(cursor, t.Duration)
		}
		if !ok {
			start, ok = c.search(cursor, c.Work.End, t.Duration)
		}
		if !ok {
			deferTask(t, WarnTaskDeferred, "no free slot left on this date")
			continue
		}

		pt := models.PlannedTask{TaskInput: t, ScheduledAt: clock.On(date, start)}
		if t.Deadline != nil && pt.End().After(*t.Deadline) {
			warnings = append(warnings, Warning{
				Code:   WarnDeadlineMissed,
				Task:   t.Title,
				Detail: fmt.Sprintf("ends after its deadline %s", t.Deadline.Format(time.RFC3339)),
			})
		}
		planned = append(planned, pt)
		placed++
		if next := start + t.Duration + c.Buffer; next > cursor {
			cursor = next
		}
	}

	sort.SliceStable(planned, func(i, j int) bool {
		return planned[i].ScheduledAt.Before(planned[j].ScheduledAt)
	})
	return planned, warnings
}
