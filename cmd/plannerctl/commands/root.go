// Package commands implements the plannerctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/benvon/voice-planner/internal/config"
	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	verbose bool
	output  string
}

// NewRootCmd builds the plannerctl command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "plannerctl",
		Short:         "Operations tool for the voice planner",
		Long:          "Plan a day offline, run routine maintenance and inspect stored preferences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "table", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("--output must be table, json or yaml, got %q", opts.output)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(newPlanCmd(opts))
	rootCmd.AddCommand(newRoutinesCmd(opts))
	rootCmd.AddCommand(newPreferencesCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	return rootCmd
}

func (o *rootOptions) logger() *zap.Logger {
	l, err := logger.NewCLILogger(o.verbose)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// withDatabase loads configuration, connects and runs fn
func withDatabase(ctx context.Context, cmd *cobra.Command, fn func(cfg *config.Config, db *database.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to close database: %v\n", err)
		}
	}()
	return fn(cfg, db)
}

// decodeFile reads a JSON or YAML document into v. YAML is converted to
// JSON first so both formats share the JSON field names and decoders.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		return nil
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}
	if err := json.Unmarshal(asJSON, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// writeStructured prints v as JSON or YAML. It reports false for the table
// format so callers render their own table.
func writeStructured(cmd *cobra.Command, format string, v any) (bool, error) {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		// Round trip through JSON so YAML keys match the API field names.
		asJSON, err := json.Marshal(v)
		if err != nil {
			return true, err
		}
		var doc any
		if err := json.Unmarshal(asJSON, &doc); err != nil {
			return true, err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return true, enc.Encode(doc)
	default:
		return false, nil
	}
}
