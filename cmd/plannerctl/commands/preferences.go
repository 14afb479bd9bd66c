package commands

import (
	"errors"
	"fmt"

	"github.com/benvon/voice-planner/internal/cache"
	"github.com/benvon/voice-planner/internal/config"
	"github.com/benvon/voice-planner/internal/database"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newPreferencesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Inspect stored user preferences",
	}
	cmd.AddCommand(newPreferencesShowCmd(opts))
	return cmd
}

func newPreferencesShowCmd(opts *rootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective preferences of a user",
		Long:  "Print the stored preferences of a known user, or the defaults when none are stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			ctx := cmd.Context()

			return withDatabase(ctx, cmd, func(cfg *config.Config, db *database.DB) error {
				if _, err := database.NewUserRepository(db).GetByID(ctx, userID); err != nil {
					if errors.Is(err, database.ErrNotFound) {
						return fmt.Errorf("user %s not found", userID)
					}
					return err
				}
				prefs := cache.NewPreferencesCache(database.NewPreferencesRepository(db), nil, 0, opts.logger())
				p, err := prefs.Get(ctx, userID)
				if err != nil {
					return err
				}
				if done, err := writeStructured(cmd, opts.output, p); done {
					return err
				}
				return printYAML(cmd, p)
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// printYAML renders v as YAML keyed by its JSON field names
func printYAML(cmd *cobra.Command, v any) error {
	_, err := writeStructured(cmd, "yaml", v)
	return err
}
