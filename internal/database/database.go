// Package database is the DuckDB reporting store. It implements pulse.Store
// for the write path and serves the dashboard read models.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

const (
	profilesTable    = "profiles"
	slowQueriesTable = "slow_queries"
	assetsTable      = "assets"
)

var _ pulse.Store = (*Database)(nil)

// Database wraps the DuckDB connection holding profiles, slow queries and assets.
type Database struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	profiles *duckdb.Table[profileRow]
	queries  *duckdb.Table[slowQueryRow]
	assets   *duckdb.Table[assetRow]
}

// Option customises a Database.
type Option func(*Database)

// WithClock replaces the clock used for retention and time windows.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// WithIDGenerator replaces the uuid generator for row ids.
func WithIDGenerator(gen func() string) Option {
	return func(d *Database) { d.newID = gen }
}

// New opens the database file at path, creating it and its schema if needed.
func New(path string, open duckdb.OpenOptions, logger zerolog.Logger, opts ...Option) (*Database, error) {
	db, err := duckdb.OpenDB(path, open)
	if err != nil {
		return nil, err
	}

	if !open.ReadOnly {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := NewWithDB(db, logger, opts...)
	d.path = path

	if !open.ReadOnly {
		if err := d.initSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	mode := "read-write"
	if open.ReadOnly {
		mode = "read-only"
	}
	d.logger.Info().Str("path", path).Str("mode", mode).Msg("Database initialized")
	return d, nil
}

// NewWithDB wraps an already open connection. The schema is not created.
func NewWithDB(db *sql.DB, logger zerolog.Logger, opts ...Option) *Database {
	d := &Database{
		db:       db,
		logger:   logger.With().Str("component", "database").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
		profiles: duckdb.NewTable[profileRow](db, profilesTable),
		queries:  duckdb.NewTable[slowQueryRow](db, slowQueriesTable),
		assets:   duckdb.NewTable[assetRow](db, assetsTable),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close closes the connection.
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.logger.Debug().Str("path", d.path).Msg("Database closed")
	return nil
}

// Ping checks that the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// trace logs a rendered statement with its arguments inlined.
func (d *Database) trace(query string, args []any) {
	if e := d.logger.Trace(); e.Enabled() {
		e.Str("sql", duckdb.InterpolateQuery(query, args)).Msg("Query")
	}
}

// DB exposes the underlying connection.
func (d *Database) DB() *sql.DB { return d.db }

// Path returns the database file path, empty for in-memory databases.
func (d *Database) Path() string { return d.path }
