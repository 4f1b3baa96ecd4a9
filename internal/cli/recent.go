package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

type recentRow struct {
	ID        string  `header:"ID"`
	When      string  `header:"WHEN"`
	Method    string  `header:"METHOD"`
	URI       string  `header:"URI"`
	Type      string  `header:"TYPE"`
	PageType  string  `header:"PAGE"`
	TotalTime float64 `header:"TIME (MS)"`
	Memory    string  `header:"MEMORY"`
	Queries   int     `header:"QUERIES"`
	Plugins   int     `header:"PLUGINS"`
}

func newRecentCmd(env *helpers.Env) *cobra.Command {
	var (
		format string
		limit  int
	)
	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatCSV}

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent profiled requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidatePositive("limit", limit); err != nil {
				return err
			}
			formatter, err := formatterFor(format, supported)
			if err != nil {
				return err
			}
			return withStore(cmd, env, true, func(ctx context.Context, _ *config.Config, db *database.Database) error {
				profiles, err := db.RecentProfiles(ctx, limit)
				if err != nil {
					return err
				}
				if format == string(helpers.FormatJSON) {
					return formatter.Format(profiles, cmd.OutOrStdout())
				}
				if len(profiles) == 0 {
					cmd.Println("No profiles recorded yet.")
					return nil
				}
				return formatter.Format(recentRows(profiles), cmd.OutOrStdout())
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	helpers.AddLimitFlag(cmd, &limit, database.DefaultRecentLimit, "profiles to list")
	return cmd
}

func recentRows(profiles []pulse.Profile) []recentRow {
	rows := make([]recentRow, len(profiles))
	for i, p := range profiles {
		rows[i] = recentRow{
			ID:        shortID(p.ID),
			When:      since(p.Timestamp),
			Method:    p.Method,
			URI:       helpers.Preview(p.RequestURI, 60),
			Type:      string(p.RequestType),
			PageType:  p.PageType,
			TotalTime: p.TotalTime,
			Memory:    pulse.FormatBytes(float64(p.TotalMemory)),
			Queries:   p.QueryCount,
			Plugins:   len(p.Plugins),
		}
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
