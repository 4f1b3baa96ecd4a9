package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/internal/safe"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

func newExportCmd(env *helpers.Env) *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export per-plugin averages as CSV",
		Example: `  pulse export > plugins.csv
  pulse export --limit 500 --output plugins.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidatePositive("limit", limit); err != nil {
				return err
			}
			return withStore(cmd, env, true, func(ctx context.Context, cfg *config.Config, db *database.Database) error {
				view, err := db.Aggregated(ctx, limit, cfg.Settings().SampleRate)
				if err != nil {
					return err
				}

				var buf bytes.Buffer
				w := csv.NewWriter(&buf)
				if err := w.WriteAll(pulse.ExportRows(view)); err != nil {
					return fmt.Errorf("failed to encode csv: %w", err)
				}

				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				if err := safe.WriteFile(output, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				cmd.PrintErrf("Exported %d plugins to %s\n", len(view.Plugins), output)
				return nil
			})
		},
	}

	helpers.AddLimitFlag(cmd, &limit, database.DefaultAggregateLimit, "recent profiles to aggregate")
	cmd.Flags().StringVar(&output, "output", "", "Write to this file instead of stdout")
	return cmd
}
