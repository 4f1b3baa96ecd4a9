package database

import (
	"context"
	"fmt"
	"time"

	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/internal/errors"
)

// DefaultRetentionDays is how long data is kept when nothing is configured.
const DefaultRetentionDays = 30

// ClearAll deletes every profile, slow query and asset.
func (d *Database) ClearAll(ctx context.Context) error {
	_, err := d.deleteAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	d.logger.Info().Msg("All profiling data cleared")
	return nil
}

// ClearOlderThan deletes rows older than days and returns the number of
// profiles removed.
func (d *Database) ClearOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}
	cutoff := d.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	removed, err := d.deleteAll(ctx, func(b *duckdb.Builder) { b.Before(cutoff) })
	if err != nil {
		return 0, fmt.Errorf("failed to clear data older than %d days: %w", days, err)
	}
	d.logger.Debug().Int("days", days).Int64("profiles", removed).Msg("Old profiling data cleared")
	return removed, nil
}

// deleteAll applies the same filter to the three tables in one transaction,
// children first.
func (d *Database) deleteAll(ctx context.Context, filter func(*duckdb.Builder)) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errors.DeferRollback(d.logger, tx)

	if _, err := duckdb.NewTable[assetRow](tx, assetsTable).DeleteWhere(ctx, filter); err != nil {
		return 0, err
	}
	if _, err := duckdb.NewTable[slowQueryRow](tx, slowQueriesTable).DeleteWhere(ctx, filter); err != nil {
		return 0, err
	}
	removed, err := duckdb.NewTable[profileRow](tx, profilesTable).DeleteWhere(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return removed, nil
}
