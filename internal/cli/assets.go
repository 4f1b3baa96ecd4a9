package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

type assetRow struct {
	Order   int    `header:"#"`
	Handle  string `header:"HANDLE"`
	Type    string `header:"TYPE"`
	Source  string `header:"SOURCE"`
	Owner   string `header:"OWNER"`
	Size    string `header:"SIZE"`
	Footer  bool   `header:"FOOTER"`
	Version string `header:"VERSION"`
}

type sourceRow struct {
	Source  string  `header:"SOURCE"`
	Owner   string  `header:"OWNER"`
	Type    string  `header:"TYPE"`
	Count   int64   `header:"COUNT"`
	AvgSize float64 `header:"AVG SIZE (B)"`
}

type topAssetRow struct {
	Handle    string `header:"HANDLE"`
	Type      string `header:"TYPE"`
	Owner     string `header:"OWNER"`
	AvgSize   string `header:"AVG SIZE"`
	Frequency int64  `header:"SEEN"`
}

func newAssetsCmd(env *helpers.Env) *cobra.Command {
	var (
		format    string
		days      int
		profileID string
	)
	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON}

	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Summarise CSS and JS assets",
		Long: `Summarise the assets of profiles captured in the last --days days, or
list the assets of one profile with --profile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidatePositive("days", days); err != nil {
				return err
			}
			formatter, err := formatterFor(format, supported)
			if err != nil {
				return err
			}
			return withStore(cmd, env, true, func(ctx context.Context, _ *config.Config, db *database.Database) error {
				out := cmd.OutOrStdout()
				if profileID != "" {
					assets, err := db.ProfileAssets(ctx, profileID)
					if err != nil {
						return err
					}
					if format == string(helpers.FormatJSON) {
						return formatter.Format(assets, out)
					}
					if len(assets) == 0 {
						cmd.Printf("No assets recorded for profile %s.\n", profileID)
						return nil
					}
					return formatter.Format(assetRows(assets), out)
				}

				summary, err := db.AggregatedAssets(ctx, days)
				if err != nil {
					return err
				}
				if format == string(helpers.FormatJSON) {
					return formatter.Format(summary, out)
				}
				return printAssetSummary(out, summary)
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	cmd.Flags().IntVar(&days, "days", database.DefaultAssetWindowDays, "Window in days")
	cmd.Flags().StringVar(&profileID, "profile", "", "List the assets of one profile")
	return cmd
}

func assetRows(assets []pulse.Asset) []assetRow {
	rows := make([]assetRow, len(assets))
	for i, a := range assets {
		size := "-"
		if a.Size != nil {
			size = pulse.FormatBytes(float64(*a.Size))
		}
		rows[i] = assetRow{
			Order:   a.LoadOrder,
			Handle:  a.Handle,
			Type:    string(a.Type),
			Source:  string(a.Source),
			Owner:   a.SourceName,
			Size:    size,
			Footer:  a.InFooter,
			Version: a.Version,
		}
	}
	return rows
}

func printAssetSummary(w io.Writer, s *database.AssetSummary) error {
	fmt.Fprintln(w, helpers.Heading(fmt.Sprintf("Assets, last %d days", s.WindowDays)))
	fmt.Fprintf(w, "%s %d\n", helpers.Label("Total assets:"), s.TotalAssets)
	fmt.Fprintf(w, "%s %.2f CSS, %.2f JS\n", helpers.Label("Per request:"), s.AvgCSSCount, s.AvgJSCount)
	fmt.Fprintf(w, "%s %s\n", helpers.Label("Avg size:"), pulse.FormatBytes(float64(s.AvgSize)))
	if s.TotalAssets == 0 {
		return nil
	}

	sources := make([]sourceRow, len(s.BySource))
	for i, src := range s.BySource {
		sources[i] = sourceRow{
			Source:  string(src.Source),
			Owner:   src.SourceName,
			Type:    string(src.Type),
			Count:   src.Count,
			AvgSize: src.AvgSize,
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, helpers.Heading("By source"))
	if err := (&helpers.TableFormatter{}).Format(sources, w); err != nil {
		return err
	}

	top := make([]topAssetRow, len(s.TopAssets))
	for i, a := range s.TopAssets {
		top[i] = topAssetRow{
			Handle:    a.Handle,
			Type:      string(a.Type),
			Owner:     a.SourceName,
			AvgSize:   pulse.FormatBytes(a.AvgSize),
			Frequency: a.Frequency,
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, helpers.Heading("Largest assets"))
	return (&helpers.TableFormatter{}).Format(top, w)
}
