package database

import (
	"context"
	"fmt"

	"github.com/coral-mesh/pulse/internal/errors"
)

// initSchema creates the tables if they are missing. It never alters existing ones.
func (d *Database) initSchema(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errors.DeferRollback(d.logger, tx)

	for _, ddl := range schemaDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

var schemaDDL = []string{
	// One row per sampled request. plugin_data and checkpoints hold JSON.
	`CREATE TABLE IF NOT EXISTS profiles (
		id VARCHAR PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		total_time DOUBLE NOT NULL,
		total_memory BIGINT NOT NULL,
		sample_rate INTEGER NOT NULL,
		request_uri VARCHAR NOT NULL,
		user_agent VARCHAR NOT NULL,
		request_type VARCHAR NOT NULL,
		page_type VARCHAR NOT NULL,
		method VARCHAR NOT NULL,
		query_count INTEGER NOT NULL,
		plugin_data VARCHAR NOT NULL,
		checkpoints VARCHAR NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_timestamp ON profiles(timestamp)`,

	`CREATE TABLE IF NOT EXISTS slow_queries (
		id VARCHAR PRIMARY KEY,
		profile_id VARCHAR NOT NULL,
		query_sql VARCHAR NOT NULL,
		query_hash VARCHAR NOT NULL,
		execution_time DOUBLE NOT NULL,
		caller VARCHAR NOT NULL,
		request_uri VARCHAR NOT NULL,
		timestamp TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_slow_queries_profile ON slow_queries(profile_id)`,

	// dependencies is a JSON array. size is NULL when unknown.
	`CREATE TABLE IF NOT EXISTS assets (
		id VARCHAR PRIMARY KEY,
		profile_id VARCHAR NOT NULL,
		handle VARCHAR NOT NULL,
		type VARCHAR NOT NULL,
		src VARCHAR NOT NULL,
		source VARCHAR NOT NULL,
		source_name VARCHAR NOT NULL,
		version VARCHAR NOT NULL,
		dependencies VARCHAR NOT NULL,
		size BIGINT,
		load_order INTEGER NOT NULL,
		in_footer BOOLEAN NOT NULL,
		inline_content VARCHAR,
		timestamp TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_profile ON assets(profile_id)`,
}
