package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/benvon/voice-planner/internal/config"
	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/queue"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRoutinesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routines",
		Short: "Routine lifecycle maintenance",
	}
	cmd.AddCommand(newRoutinesSweepCmd(opts))
	cmd.AddCommand(newRoutinesExpiringCmd(opts))
	return cmd
}

// parseUserFlag returns nil for an empty flag, meaning every user
func parseUserFlag(value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("--user must be a UUID: %w", err)
	}
	return &id, nil
}

func newRoutinesSweepCmd(opts *rootOptions) *cobra.Command {
	var user string
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Renew or deactivate expired routines",
		Long: `Renew expired auto-renewing routines and deactivate the others. With --enqueue
the sweep is queued for the worker instead of running here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserFlag(user)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			log := opts.logger()

			if enqueue {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, 1, log)
				if err != nil {
					return err
				}
				defer func() { _ = jobQueue.Close() }()

				job := queue.NewSweepJob(userID)
				if err := jobQueue.Enqueue(ctx, job); err != nil {
					return fmt.Errorf("failed to enqueue sweep: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued routine sweep job %s\n", job.ID)
				return nil
			}

			return withDatabase(ctx, cmd, func(cfg *config.Config, db *database.DB) error {
				lifecycle := routines.NewLifecycle(database.NewRoutineRepository(db), log)
				report, err := lifecycle.Sweep(ctx, userID)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, opts.output, report); done {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Renewed: %d\nDeactivated: %d\nSkipped: %d\nFailed: %d\n",
					report.Renewed, report.Deactivated, report.Skipped, report.Failed)
				for _, f := range report.Failures {
					fmt.Fprintf(out, "  - %s: %s\n", f.RoutineID, f.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Only sweep routines of this user ID")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the sweep for the worker")
	return cmd
}

func newRoutinesExpiringCmd(opts *rootOptions) *cobra.Command {
	var user string
	var days int

	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List active routines expiring soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserFlag(user)
			if err != nil {
				return err
			}
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			ctx := cmd.Context()

			return withDatabase(ctx, cmd, func(cfg *config.Config, db *database.DB) error {
				lifecycle := routines.NewLifecycle(database.NewRoutineRepository(db), opts.logger(), routines.WithExpiringWindow(days))
				expiring, err := lifecycle.ExpiringSoon(ctx, userID)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, opts.output, expiring); done {
					return err
				}
				if len(expiring) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No routines expire in the next %d days\n", days)
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSER\tTITLE\tEXPIRES\tAUTO RENEW")
				for _, r := range expiring {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", r.ID, r.UserID, r.Title, r.ExpiresAt.Format(time.RFC3339), r.AutoRenew)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Only list routines of this user ID")
	cmd.Flags().IntVar(&days, "days", routines.DefaultExpiringWindowDays, "Look-ahead window in days")
	return cmd
}
