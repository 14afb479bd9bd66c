package planning

import (
	"fmt"

	"github.com/benvon/voice-planner/internal/models"
)

// ResolveDependencies reorders tasks so every task follows the task its
// DependsOn names. Missing or self references are dropped and cycles are
// broken at the edge that closes them; each case is reported as a warning.
// Tasks keep their input order wherever no dependency constrains them.
func ResolveDependencies(tasks []models.TaskInput) ([]models.TaskInput, []Warning) {
	byTitle := make(map[string]int, len(tasks))
	for i, t := range tasks {
		// The first task wins when titles collide.
		if _, ok := byTitle[t.Title]; !ok {
			byTitle[t.Title] = i
		}
	}

	var warnings []Warning
	edges := make([]int, len(tasks))
	for i, t := range tasks {
		edges[i] = -1
		if t.DependsOn == "" {
			continue
		}
		dep, ok := byTitle[t.DependsOn]
		switch {
		case !ok:
			warnings = append(warnings, Warning{
				Code:   WarnDependencyMissing,
				Task:   t.Title,
				Detail: fmt.Sprintf("depends on unknown task %q", t.DependsOn),
			})
		case dep == i || t.DependsOn == t.Title:
			warnings = append(warnings, Warning{
				Code:   WarnDependencySelf,
				Task:   t.Title,
				Detail: "task depends on itself",
			})
		default:
			edges[i] = dep
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(tasks))
	order := make([]models.TaskInput, 0, len(tasks))

	// Each task has at most one outgoing edge so the walk is a chain. It is
	// followed iteratively to keep deep chains off the call stack.
	for start := range tasks {
		if state[start] != unvisited {
			continue
		}
		var chain []int
		node := start
		for node != -1 && state[node] == unvisited {
			state[node] = visiting
			chain = append(chain, node)
			next := edges[node]
			if next != -1 && state[next] == visiting {
				warnings = append(warnings, Warning{
					Code:   WarnDependencyCycle,
					Task:   tasks[node].Title,
					Detail: fmt.Sprintf("dependency on %q closes a cycle and was ignored", tasks[next].Title),
				})
				next = -1
			}
			node = next
		}
		for i := len(chain) - 1; i >= 0; i-- {
			state[chain[i]] = visited
			order = append(order, tasks[chain[i]])
		}
	}

	return order, warnings
}
