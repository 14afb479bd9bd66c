package commands

import (
	"fmt"

	"github.com/benvon/voice-planner/internal/config"
	"github.com/benvon/voice-planner/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDatabase(ctx, cmd, func(cfg *config.Config, db *database.DB) error {
				if err := db.Migrate(ctx, opts.logger()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}
