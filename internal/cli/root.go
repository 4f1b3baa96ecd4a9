// Package cli implements the pulse command line.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/constants"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/internal/errors"
)

// NewRootCmd builds the pulse command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(helpers.NewEnv(nil))
}

func newRootCmd(env *helpers.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse - sampled request profiling for plugin-based sites",
		Long: `Pulse profiles a sample of requests to a plugin-based site and reports
which plugins and themes cost the most load time and memory, which queries
are slow and which assets are shipped.

The commands here read the reporting store written by the instrumented host,
serve it as a dashboard API or expose it to MCP clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&env.ConfigPath, "config", "",
		"Config file (default $PULSE_CONFIG or ~/.pulse/config.yaml)")
	cmd.PersistentFlags().StringVar(&env.LogLevel, "log-level", "",
		"Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(env),
		newSummaryCmd(env),
		newRecentCmd(env),
		newQueriesCmd(env),
		newAssetsCmd(env),
		newExportCmd(env),
		newClearCmd(env),
		newMCPCmd(env),
		newConfigCmd(env),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// withStore opens the reporting store for one command and closes it after fn.
func withStore(cmd *cobra.Command, env *helpers.Env, readOnly bool,
	fn func(ctx context.Context, cfg *config.Config, db *database.Database) error,
) error {
	cfg, err := env.Config()
	if err != nil {
		return err
	}
	logger := env.Logger(cfg, true)

	db, err := helpers.OpenStore(cfg, readOnly, logger)
	if err != nil {
		return err
	}
	defer errors.DeferClose(logger, db, "Failed to close reporting store")

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.DefaultQueryTimeout)
	defer cancel()
	return fn(ctx, cfg, db)
}

func formatterFor(format string, supported []helpers.OutputFormat) (helpers.Formatter, error) {
	if err := helpers.ValidateFormat(format, supported); err != nil {
		return nil, err
	}
	return helpers.NewFormatter(helpers.OutputFormat(format))
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
