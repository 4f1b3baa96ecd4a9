package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		opts OpenOptions
		want string
	}{
		{"memory", ":memory:", OpenOptions{}, ""},
		{"plain file", "/data/pulse.duckdb", OpenOptions{}, "/data/pulse.duckdb"},
		{"read only", "/data/pulse.duckdb", OpenOptions{ReadOnly: true}, "/data/pulse.duckdb?access_mode=READ_ONLY"},
		{"threads and memory", "/data/p.duckdb", OpenOptions{Threads: 2, MemoryLimit: "256MB"}, "/data/p.duckdb?max_memory=256MB&threads=2"},
		{"existing params win", "/data/p.duckdb?threads=8", OpenOptions{Threads: 2}, "/data/p.duckdb?threads=8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.path, tt.opts))
		})
	}
}

func TestOpenDB_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pulse.duckdb")

	db, err := OpenDB(path, OpenOptions{Threads: 1})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var one int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
	assert.FileExists(t, path)
}
