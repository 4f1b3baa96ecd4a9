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

const sqlPreviewLen = 80

type slowQueryRow struct {
	When          string  `header:"WHEN"`
	ExecutionTime float64 `header:"TIME (MS)"`
	Caller        string  `header:"CALLER"`
	URI           string  `header:"URI"`
	SQL           string  `header:"SQL"`
}

type frequentRow struct {
	Hash      string  `header:"HASH"`
	Frequency int64   `header:"COUNT"`
	AvgTime   float64 `header:"AVG (MS)"`
	MaxTime   float64 `header:"MAX (MS)"`
	Preview   string  `header:"QUERY"`
}

func newQueriesCmd(env *helpers.Env) *cobra.Command {
	var (
		format string
		limit  int
		stats  bool
	)
	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatCSV}

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "List slow queries",
		Long: `List the slowest recorded queries, newest first. With --stats, show
totals and the queries that are slow most often instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidatePositive("limit", limit); err != nil {
				return err
			}
			formatter, err := formatterFor(format, supported)
			if err != nil {
				return err
			}
			return withStore(cmd, env, true, func(ctx context.Context, _ *config.Config, db *database.Database) error {
				out := cmd.OutOrStdout()
				if stats {
					s, err := db.SlowQueryStats(ctx)
					if err != nil {
						return err
					}
					if format == string(helpers.FormatJSON) {
						return formatter.Format(s, out)
					}
					return printQueryStats(out, formatter, s)
				}

				queries, err := db.SlowQueries(ctx, limit)
				if err != nil {
					return err
				}
				if format == string(helpers.FormatJSON) {
					return formatter.Format(queries, out)
				}
				if len(queries) == 0 {
					cmd.Println("No slow queries recorded.")
					return nil
				}
				return formatter.Format(slowQueryRows(queries), out)
			})
		},
	}

	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	helpers.AddLimitFlag(cmd, &limit, database.DefaultSlowQueryLimit, "queries to list")
	cmd.Flags().BoolVar(&stats, "stats", false, "Show aggregate statistics instead of the list")
	return cmd
}

func slowQueryRows(queries []pulse.SlowQuery) []slowQueryRow {
	rows := make([]slowQueryRow, len(queries))
	for i, q := range queries {
		rows[i] = slowQueryRow{
			When:          since(q.Timestamp),
			ExecutionTime: q.ExecutionTime,
			Caller:        q.Caller,
			URI:           q.RequestURI,
			SQL:           helpers.Preview(q.SQL, sqlPreviewLen),
		}
	}
	return rows
}

func printQueryStats(w io.Writer, f helpers.Formatter, s *database.SlowQueryStats) error {
	if _, csv := f.(*helpers.CSVFormatter); !csv {
		fmt.Fprintln(w, helpers.Heading("Slow queries"))
		fmt.Fprintf(w, "%s %d\n", helpers.Label("Total:"), s.Total)
		fmt.Fprintf(w, "%s %.2f ms / %.2f ms / %.2f ms\n",
			helpers.Label("Avg / max / min:"), s.AvgTime, s.MaxTime, s.MinTime)
		fmt.Fprintln(w)
		fmt.Fprintln(w, helpers.Heading("Most frequent"))
	}

	rows := make([]frequentRow, len(s.Frequent))
	for i, q := range s.Frequent {
		rows[i] = frequentRow{
			Hash:      q.Hash,
			Frequency: q.Frequency,
			AvgTime:   q.AvgTime,
			MaxTime:   q.MaxTime,
			Preview:   helpers.Preview(q.Preview, sqlPreviewLen),
		}
	}
	return f.Format(rows, w)
}
