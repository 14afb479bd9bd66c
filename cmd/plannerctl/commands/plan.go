package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/planning"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/services/planner"
	"github.com/benvon/voice-planner/internal/validation"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// PlanFile is the offline planning input
type PlanFile struct {
	Date            string                `json:"date,omitempty"`
	IncludeRoutines *bool                 `json:"includeRoutines,omitempty"`
	Tasks           []planner.TaskRequest `json:"tasks"`
	Routines        []routines.Input      `json:"routines,omitempty"`
}

// staticPreferences serves one preference document to every user
type staticPreferences struct {
	prefs models.Preferences
}

func (s staticPreferences) Get(ctx context.Context, userID uuid.UUID) (models.Preferences, error) {
	return s.prefs, nil
}

// staticRoutines serves the routines of a plan file. Nothing expires while
// planning offline, so renewal operations are no-ops.
type staticRoutines struct {
	routines []*models.Routine
}

func (s staticRoutines) ActiveRoutines(ctx context.Context, userID uuid.UUID) ([]*models.Routine, error) {
	return s.routines, nil
}

func (s staticRoutines) ExpiringSoon(ctx context.Context, userID uuid.UUID) ([]models.ExpiringRoutine, error) {
	return nil, nil
}

func (s staticRoutines) ApplyDecisions(ctx context.Context, userID uuid.UUID, decisions []models.RenewalDecision) error {
	return nil
}

var (
	_ planner.PreferencesSource = staticPreferences{}
	_ planner.RoutineSource     = staticRoutines{}
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var tasksPath, prefsPath, date string
	var noRoutines bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a day offline from a task file",
		Long: `Plan a day without a database. The task file (JSON or YAML) holds tasks and
optional routines; the preferences file (YAML) overrides the default preferences.`,
		Example: "  plannerctl plan --tasks day.yaml --preferences prefs.yaml --date 2026-03-02",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tasksPath == "" {
				return fmt.Errorf("--tasks is required")
			}

			var file PlanFile
			if err := decodeFile(tasksPath, &file); err != nil {
				return err
			}
			prefs, err := loadPreferences(prefsPath)
			if err != nil {
				return err
			}
			active, err := buildRoutines(file.Routines, time.Now())
			if err != nil {
				return err
			}

			req := planner.GenerateRequest{
				Date:            file.Date,
				Tasks:           file.Tasks,
				IncludeRoutines: file.IncludeRoutines,
			}
			if date != "" {
				req.Date = date
			}
			if noRoutines {
				off := false
				req.IncludeRoutines = &off
			}

			log := opts.logger()
			svc := planner.NewService(planning.NewEngine(log), staticPreferences{prefs}, staticRoutines{active}, nil, nil, log)
			res, err := svc.Generate(cmd.Context(), uuid.Nil, req)
			if err != nil {
				return err
			}

			if done, err := writeStructured(cmd, opts.output, res); done {
				return err
			}
			return printPlan(cmd, res, prefs.Location())
		},
	}

	cmd.Flags().StringVar(&tasksPath, "tasks", "", "Task file (JSON or YAML)")
	cmd.Flags().StringVar(&prefsPath, "preferences", "", "Preferences file (YAML); defaults apply when omitted")
	cmd.Flags().StringVar(&date, "date", "", "Planning date YYYY-MM-DD, overriding the task file")
	cmd.Flags().BoolVar(&noRoutines, "no-routines", false, "Leave routines out of the planning")
	return cmd
}

// loadPreferences decodes a YAML preferences document over the defaults
func loadPreferences(path string) (models.Preferences, error) {
	prefs := models.DefaultPreferences(uuid.Nil)
	if path == "" {
		return prefs, nil
	}
	if err := decodeFile(path, &prefs); err != nil {
		return prefs, err
	}
	prefs = prefs.Normalize()
	if err := validation.Preferences(prefs); err != nil {
		return prefs, fmt.Errorf("%s: %w", path, err)
	}
	return prefs, nil
}

func buildRoutines(inputs []routines.Input, now time.Time) ([]*models.Routine, error) {
	out := make([]*models.Routine, 0, len(inputs))
	for i, in := range inputs {
		r := routines.NewRoutine(uuid.Nil, in, now)
		if err := routines.Validate(r); err != nil {
			return nil, fmt.Errorf("routine %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func printPlan(cmd *cobra.Command, res *planner.GenerateResult, loc *time.Location) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Planning for %s\n\n", res.Date)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tMIN\tPRIORITY\tTITLE\tNOTE")
	for _, t := range res.Tasks {
		note := ""
		switch {
		case t.Deferred:
			note = "deferred to " + t.ScheduledAt.In(loc).Format("Mon 15:04")
		case t.RoutineID != nil:
			note = "routine"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			t.ScheduledAt.In(loc).Format("15:04"),
			t.End().In(loc).Format("15:04"),
			t.Duration,
			t.Priority,
			t.Title,
			note,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range res.Warnings {
			if w.Task != "" {
				fmt.Fprintf(out, "  - %s (%s): %s\n", w.Code, w.Task, w.Detail)
			} else {
				fmt.Fprintf(out, "  - %s: %s\n", w.Code, w.Detail)
			}
		}
	}
	return nil
}
