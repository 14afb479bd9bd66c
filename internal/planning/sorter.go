package planning

import (
	"fmt"
	"sort"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
)

// DedupSuggestedTimes clears the suggested time of every task that shares
// it with an earlier task. The first writer keeps the slot and the rest
// degrade to priority placement. Input order is the tie-break.
func DedupSuggestedTimes(tasks []models.TaskInput) []Warning {
	var warnings []Warning
	seen := make(map[int]string, len(tasks))
	for i := range tasks {
		if tasks[i].SuggestedTime == "" {
			continue
		}
		minute, err := clock.Parse(tasks[i].SuggestedTime)
		if err != nil {
			continue
		}
		if owner, ok := seen[minute]; ok {
			warnings = append(warnings, Warning{
				Code:   WarnSuggestedTimeMissed,
				Task:   tasks[i].Title,
				Detail: fmt.Sprintf("%s is already claimed by %q", tasks[i].SuggestedTime, owner),
			})
			tasks[i].SuggestedTime = ""
			continue
		}
		seen[minute] = tasks[i].Title
	}
	return warnings
}

// SortTasks orders tasks in place: tasks with a suggested time first by
// minute of day, then the rest by priority and energy, highest first.
// The sort is stable so dependency order survives among equal keys.
func SortTasks(tasks []models.TaskInput) {
	keys := make([]sortKey, len(tasks))
	for i, t := range tasks {
		keys[i] = sortKey{priority: t.Priority.Rank(), energy: t.EnergyLevel.Rank()}
		if m, err := clock.Parse(t.SuggestedTime); err == nil {
			keys[i].timed = true
			keys[i].minute = m
		}
	}

	idx := make([]int, len(tasks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].less(keys[idx[b]])
	})

	sorted := make([]models.TaskInput, len(tasks))
	for i, j := range idx {
		sorted[i] = tasks[j]
	}
	copy(tasks, sorted)
}

type sortKey struct {
	timed    bool
	minute   int
	priority int
	energy   int
}

func (k sortKey) less(o sortKey) bool {
	if k.timed != o.timed {
		return k.timed
	}
	if k.timed {
		return k.minute < o.minute
	}
	if k.priority != o.priority {
		return k.priority > o.priority
	}
	return k.energy > o.energy
}
