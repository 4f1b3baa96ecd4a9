package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRow struct {
	ID        string         `duckdb:"id,pk"`
	Timestamp time.Time      `duckdb:"timestamp"`
	Name      string         `duckdb:"name"`
	Size      sql.NullInt64  `duckdb:"size"`
	Note      sql.NullString `duckdb:"note"`
	Scratch   string
}

func newSampleTable(t *testing.T) *Table[sampleRow] {
	t.Helper()
	db, err := OpenDB("", OpenOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE samples (
		id VARCHAR PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		name VARCHAR NOT NULL,
		size BIGINT,
		note VARCHAR
	)`)
	require.NoError(t, err)
	return NewTable[sampleRow](db, "samples")
}

func TestNewTable_Columns(t *testing.T) {
	table := NewTable[sampleRow](nil, "samples")
	assert.Equal(t, []string{"id", "timestamp", "name", "size", "note"}, table.Columns())
	assert.Equal(t, "samples", table.Name())
	assert.Panics(t, func() { NewTable[int](nil, "x") })
}

func TestTable_InsertFindGet(t *testing.T) {
	ctx := context.Background()
	table := newSampleTable(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := []sampleRow{
		{ID: "a", Timestamp: base, Name: "first", Size: sql.NullInt64{Int64: 10, Valid: true}},
		{ID: "b", Timestamp: base.Add(time.Minute), Name: "second"},
		{ID: "a", Timestamp: base, Name: "duplicate"},
	}
	errs := table.InsertEach(ctx, rows)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Error(t, errs[2], "primary key violation is reported per row")

	got, err := table.Find(ctx, func(b *Builder) { b.OrderBy("-timestamp") })
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.False(t, got[0].Size.Valid)
	assert.True(t, got[1].Timestamp.Equal(base))

	one, err := table.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), one.Size.Int64)

	_, err = table.Get(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	n, err := table.Count(ctx, func(b *Builder) { b.Since(base.Add(time.Second)) })
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTable_DeleteWhere(t *testing.T) {
	ctx := context.Background()
	table := newSampleTable(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, err := range table.InsertEach(ctx, []sampleRow{
		{ID: "old", Timestamp: base.Add(-48 * time.Hour), Name: "old"},
		{ID: "new", Timestamp: base, Name: "new"},
	}) {
		require.NoError(t, err)
	}

	removed, err := table.DeleteWhere(ctx, func(b *Builder) { b.Before(base.Add(-24 * time.Hour)) })
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := table.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
}

func TestTable_InsertRetriesConflicts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	table := NewTable[sampleRow](db, "samples")
	query := "INSERT INTO samples (id, timestamp, name, size, note) VALUES (?, ?, ?, ?, ?)"
	mock.ExpectExec(query).WillReturnError(errors.New("TransactionContext Error: Conflict on update"))
	mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, table.Insert(context.Background(), &sampleRow{ID: "x", Name: "x"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_InsertDoesNotRetryOtherErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	table := NewTable[sampleRow](db, "samples")
	mock.ExpectExec("INSERT INTO samples").WillReturnError(errors.New("disk full"))

	err = table.Insert(context.Background(), &sampleRow{ID: "x"})
	require.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTable_InsertEachStopsOnCancel(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errs := NewTable[sampleRow](db, "samples").InsertEach(ctx, make([]sampleRow, 2))
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestIsTransactionConflict(t *testing.T) {
	assert.False(t, isTransactionConflict(nil))
	assert.True(t, isTransactionConflict(errors.New("Conflict on update!")))
	assert.True(t, isTransactionConflict(errors.New("could not serialize: serialization failure")))
	assert.False(t, isTransactionConflict(errors.New("Constraint Error: Duplicate key")))
}
