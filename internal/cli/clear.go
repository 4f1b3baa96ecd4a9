package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/internal/errors"
)

func newClearCmd(env *helpers.Env) *cobra.Command {
	var (
		olderThan int
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded profiles",
		Long: `Delete every profile with its slow queries and assets, and empty the
fallback cache. With --older-than, delete only profiles older than that many
days and keep the cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("older-than") {
				if err := helpers.ValidatePositive("older-than", olderThan); err != nil {
					return err
				}
			}

			if !yes {
				what := "ALL recorded profiles"
				if olderThan > 0 {
					what = fmt.Sprintf("profiles older than %d days", olderThan)
				}
				ok, err := confirm(cmd, fmt.Sprintf("Delete %s? [y/N] ", what))
				if err != nil {
					return err
				}
				if !ok {
					cmd.Println("Aborted.")
					return nil
				}
			}

			return withStore(cmd, env, false, func(ctx context.Context, cfg *config.Config, db *database.Database) error {
				if olderThan > 0 {
					n, err := db.ClearOlderThan(ctx, olderThan)
					if err != nil {
						return err
					}
					cmd.Printf("Deleted %d profiles older than %d days.\n", n, olderThan)
					return nil
				}

				if err := db.ClearAll(ctx); err != nil {
					return err
				}
				clearCache(ctx, cmd, env, cfg)
				cmd.Println("All profile data deleted.")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&olderThan, "older-than", 0, "Only delete profiles older than this many days")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// clearCache empties the fallback cache. A cache held open by a running
// server is reported and skipped.
func clearCache(ctx context.Context, cmd *cobra.Command, env *helpers.Env, cfg *config.Config) {
	logger := env.Logger(cfg, true)
	cache, err := helpers.OpenCache(cfg, logger)
	if err != nil {
		cmd.PrintErrf("Warning: fallback cache not cleared: %v\n", err)
		return
	}
	defer errors.DeferClose(logger, cache, "Failed to close fallback cache")
	if err := cache.Clear(ctx); err != nil {
		cmd.PrintErrf("Warning: fallback cache not cleared: %v\n", err)
	}
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	cmd.Print(prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
