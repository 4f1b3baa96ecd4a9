package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracedDB_RecordsQueriesForSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT ID FROM wp_posts").
		WillDelayFor(60 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(1))
	mock.ExpectExec("UPDATE wp_options").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT option_value").
		WillReturnRows(sqlmock.NewRows([]string{"option_value"}).AddRow("x"))

	s := newTestSession(newFakeClock(), &fakeMemory{}, nil)
	ctx := NewContext(context.Background(), s)
	traced := NewTracedDB(db)

	rows, err := traced.QueryContext(ctx, "SELECT ID FROM wp_posts WHERE post_status = ?", "publish")
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	_, err = traced.ExecContext(ctx, "UPDATE wp_options SET option_value = ?", "y")
	require.NoError(t, err)

	var v string
	require.NoError(t, traced.QueryRowContext(ctx, "SELECT option_value FROM wp_options").Scan(&v))
	assert.Equal(t, "x", v)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 3, s.QueryCount())

	slow := s.FinalizeQueries()
	require.Len(t, slow, 1)
	assert.Contains(t, slow[0].SQL, "wp_posts")
	assert.GreaterOrEqual(t, slow[0].ExecutionTime, 50.0)
	assert.Contains(t, slow[0].Caller, "TestTracedDB_RecordsQueriesForSession")
	assert.Contains(t, slow[0].Caller, "tracedb_test.go:")
}

func TestTracedDB_WithoutSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DELETE FROM wp_options").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = NewTracedDB(db).ExecContext(context.Background(), "DELETE FROM wp_options")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
