package duckdb

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// OpenOptions tune the DuckDB instance behind a DSN.
type OpenOptions struct {
	// ReadOnly opens the file with access_mode=READ_ONLY so several CLI
	// readers can share it with one writer process.
	ReadOnly bool
	// Threads limits DuckDB worker threads. Zero keeps the DuckDB default.
	Threads int
	// MemoryLimit is passed through as max_memory, e.g. "512MB".
	MemoryLimit string
}

// OpenDB opens (or creates) the database at path. An empty path or ":memory:"
// gives a private in-memory database. Parent directories are created.
func OpenDB(path string, opts OpenOptions) (*sql.DB, error) {
	if path != "" && path != ":memory:" && !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	connector, err := duckdbDriver.NewConnector(buildDSN(path, opts), nil)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	return sql.OpenDB(connector), nil
}

// buildDSN appends option parameters to path, keeping any that are already set.
func buildDSN(path string, opts OpenOptions) string {
	if path == ":memory:" {
		path = ""
	}

	base, query, _ := strings.Cut(path, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return path
	}

	setDefault := func(key, value string) {
		if !params.Has(key) {
			params.Set(key, value)
		}
	}
	if opts.ReadOnly {
		setDefault("access_mode", "READ_ONLY")
	}
	if opts.Threads > 0 {
		setDefault("threads", strconv.Itoa(opts.Threads))
	}
	if opts.MemoryLimit != "" {
		setDefault("max_memory", opts.MemoryLimit)
	}

	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}
