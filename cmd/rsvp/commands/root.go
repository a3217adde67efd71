package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JollyGrin/waterhouse-rsvp/pkg/booking"
)

var (
	// Global flags
	configPath string
	rulePaths  []string
	dbPath     string
	week       string
	verbose    bool
	jsonOutput bool

	version = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, ver, commit, buildDate string) error {
	version = ver
	rootCmd := newRootCommand(ver, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(ver, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rsvp",
		Short: "Studio reservation grid",
		Long: `rsvp books hour slots on a weekly grid of resources.

Booking rules decide which span a click selects, how a selection may grow,
and whether it can be reserved:
  - fixed_slot: predefined session windows
  - fixed_duration: blocks of an exact length
  - min_max_duration: spans between a minimum and maximum length
  - time_range: time-of-day windows with an increment size

Rules come from YAML, JSON, CUE or Starlark files. Without rule files the
built-in studio policy is used.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", ver, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rsvp.yaml", "config file path")
	rootCmd.PersistentFlags().StringSliceVar(&rulePaths, "rules", nil, "rule files or directories (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&week, "week", "w", booking.CurrentWeek(time.Now()), "ISO week, e.g. 2026-W42")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newRulesCommand())
	rootCmd.AddCommand(newProposeCommand())
	rootCmd.AddCommand(newExtendCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newBookCommand())
	rootCmd.AddCommand(newConfirmCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newCancelCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}
