package pulse

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"runtime"
	"strings"
	"time"
)

// TracedDB wraps a *sql.DB and reports every query to the session in the context.
// Calls made with a context that carries no session behave exactly like the wrapped DB.
type TracedDB struct {
	*sql.DB
}

// NewTracedDB wraps db.
func NewTracedDB(db *sql.DB) *TracedDB {
	return &TracedDB{DB: db}
}

// QueryContext runs a query and records its duration and caller.
func (t *TracedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s := FromContext(ctx)
	query = s.OnQueryStart(query)
	start := time.Now()
	rows, err := t.DB.QueryContext(ctx, query, args...)
	s.RecordQuery(QueryRecord{SQL: query, Duration: time.Since(start), Caller: callerOf(2)})
	return rows, err
}

// ExecContext runs a statement and records its duration and caller.
func (t *TracedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s := FromContext(ctx)
	query = s.OnQueryStart(query)
	start := time.Now()
	res, err := t.DB.ExecContext(ctx, query, args...)
	s.RecordQuery(QueryRecord{SQL: query, Duration: time.Since(start), Caller: callerOf(2)})
	return res, err
}

// QueryRowContext runs a single-row query and records its duration and caller.
// The duration covers statement execution only; the row is scanned later by the caller.
func (t *TracedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	s := FromContext(ctx)
	query = s.OnQueryStart(query)
	start := time.Now()
	row := t.DB.QueryRowContext(ctx, query, args...)
	s.RecordQuery(QueryRecord{SQL: query, Duration: time.Since(start), Caller: callerOf(2)})
	return row
}

// callerOf formats the frame skip levels above it as "function (file:line)".
func callerOf(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "Unknown"
	}
	name := "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	return fmt.Sprintf("%s (%s:%d)", name, path.Base(file), line)
}
