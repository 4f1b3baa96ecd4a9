package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coral-mesh/pulse/internal/retry"
)

// ErrNoPrimaryKey is returned by lookups on a table without a `pk` column.
var ErrNoPrimaryKey = errors.New("no primary key defined for table")

// Execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WriteRetry is the backoff applied to inserts that hit a transaction conflict.
var WriteRetry = retry.Config{
	MaxRetries:     10,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     500 * time.Millisecond,
	Jitter:         0.1,
}

// Table maps rows of one table onto the struct type T.
//
// Columns come from `duckdb:"name[,pk]"` field tags, in field order.
type Table[T any] struct {
	db       Execer
	name     string
	columns  []string
	pk       string
	fieldIdx []int
}

// NewTable builds the column mapping for T. It panics if T is not a struct.
func NewTable[T any](db Execer, name string) *Table[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() != reflect.Struct {
		panic("duckdb: Table type parameter must be a struct")
	}

	table := &Table[T]{db: db, name: name}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		col := strings.TrimSpace(parts[0])
		table.columns = append(table.columns, col)
		table.fieldIdx = append(table.fieldIdx, i)
		for _, opt := range parts[1:] {
			if strings.TrimSpace(opt) == "pk" && table.pk == "" {
				table.pk = col
			}
		}
	}
	return table
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Columns returns the mapped column names in insert order.
func (t *Table[T]) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Query returns a builder selecting every mapped column of the table.
func (t *Table[T]) Query() *Builder {
	return NewQueryBuilder(t.name).Select(t.columns...)
}

func (t *Table[T]) insertSQL() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	// #nosec G201 - table and column names come from struct tags
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.columns, ", "), placeholders)
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	out := make([]any, len(t.fieldIdx))
	for i, idx := range t.fieldIdx {
		out[i] = val.Field(idx).Interface()
	}
	return out
}

// Insert writes one row, retrying on transaction conflicts.
func (t *Table[T]) Insert(ctx context.Context, item *T) error {
	query := t.insertSQL()
	values := t.values(item)
	return retry.Do(ctx, WriteRetry, func() error {
		_, err := t.db.ExecContext(ctx, query, values...)
		return err
	}, isTransactionConflict)
}

// InsertEach writes items one statement at a time and returns one error slot
// per item. A failed row does not stop the rows after it.
func (t *Table[T]) InsertEach(ctx context.Context, items []T) []error {
	errs := make([]error, len(items))
	for i := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		errs[i] = t.Insert(ctx, &items[i])
	}
	return errs
}

// Get fetches the row whose primary key equals id.
// It returns sql.ErrNoRows when nothing matches.
func (t *Table[T]) Get(ctx context.Context, id any) (*T, error) {
	if t.pk == "" {
		return nil, ErrNoPrimaryKey
	}
	query, args, err := t.Query().Where(t.pk+" = ?", id).Build()
	if err != nil {
		return nil, err
	}
	return t.scan(t.db.QueryRowContext(ctx, query, args...))
}

// Find runs a SELECT over all mapped columns. build narrows the query and
// may be nil.
func (t *Table[T]) Find(ctx context.Context, build func(*Builder)) ([]T, error) {
	b := t.Query()
	if build != nil {
		build(b)
	}
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]T, 0)
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Count returns the number of rows matching build, which may be nil.
func (t *Table[T]) Count(ctx context.Context, build func(*Builder)) (int64, error) {
	b := NewQueryBuilder(t.name).Select("COUNT(*)")
	if build != nil {
		build(b)
	}
	query, args, err := b.Build()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// DeleteWhere removes rows matching build and returns how many were removed.
// A nil build deletes every row.
func (t *Table[T]) DeleteWhere(ctx context.Context, build func(*Builder)) (int64, error) {
	b := NewQueryBuilder(t.name)
	if build != nil {
		build(b)
	}
	query, args, err := b.BuildDelete()
	if err != nil {
		return 0, err
	}
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *Table[T]) scan(s scanner) (*T, error) {
	var item T
	val := reflect.ValueOf(&item).Elem()
	dest := make([]any, len(t.fieldIdx))
	for i, idx := range t.fieldIdx {
		dest[i] = val.Field(idx).Addr().Interface()
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return &item, nil
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "conflict") ||
		strings.Contains(msg, "serialization") ||
		strings.Contains(msg, "TransactionContext Error")
}
