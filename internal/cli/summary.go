package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/internal/httpapi"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

func newSummaryCmd(env *helpers.Env) *cobra.Command {
	var (
		format string
		limit  int
	)
	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show per-plugin load cost over recent profiles",
		Long: `Aggregate the most recent profiles into average load time, memory and
files loaded per plugin, slowest first, followed by performance insights.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidatePositive("limit", limit); err != nil {
				return err
			}
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}
			return withStore(cmd, env, true, func(ctx context.Context, cfg *config.Config, db *database.Database) error {
				out, err := loadSummary(ctx, db, limit, cfg.Settings().SampleRate)
				if err != nil {
					return err
				}
				if format == string(helpers.FormatJSON) {
					return (&helpers.JSONFormatter{}).Format(out, cmd.OutOrStdout())
				}
				return printSummary(cmd.OutOrStdout(), out)
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	helpers.AddLimitFlag(cmd, &limit, database.DefaultAggregateLimit, "recent profiles to aggregate")
	return cmd
}

func loadSummary(ctx context.Context, db *database.Database, limit, sampleRate int) (*httpapi.SummaryResponse, error) {
	view, err := db.Aggregated(ctx, limit, sampleRate)
	if err != nil {
		return nil, err
	}
	stats, err := db.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return &httpapi.SummaryResponse{Aggregate: view, Insights: pulse.Insights(view), Statistics: stats}, nil
}

func printSummary(w io.Writer, s *httpapi.SummaryResponse) error {
	v := s.Aggregate
	fmt.Fprintln(w, helpers.Heading("Plugin performance"))
	fmt.Fprintf(w, "%s %d (%s confidence, sample rate %d%%)\n",
		helpers.Label("Profiles:"), v.TotalProfiles, v.Confidence, v.SampleRate)
	fmt.Fprintf(w, "%s %s ms\n", helpers.Label("Avg load time:"), pulse.FormatNumber(v.AvgLoadTime, 2))
	fmt.Fprintf(w, "%s %s\n", helpers.Label("Avg memory:"), pulse.FormatBytes(v.AvgMemory))
	if s.Statistics != nil && s.Statistics.TotalProfiles > int64(v.TotalProfiles) {
		fmt.Fprintf(w, "%s %d\n", helpers.Label("Stored profiles:"), s.Statistics.TotalProfiles)
	}
	fmt.Fprintln(w)

	if len(v.Plugins) == 0 {
		fmt.Fprintln(w, "No plugin data recorded yet.")
	} else if err := (&helpers.TableFormatter{}).Format(v.Plugins, w); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, helpers.Heading("Insights"))
	for _, in := range s.Insights {
		fmt.Fprintln(w, helpers.Insight(in))
	}
	return nil
}
