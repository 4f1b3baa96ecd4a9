package safe

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("profiling: {}"), 0o600))
	link := filepath.Join(dir, "link.yaml")
	require.NoError(t, os.Symlink(file, link))

	data, err := ReadFile(file, nil)
	require.NoError(t, err)
	assert.Equal(t, "profiling: {}", string(data))

	_, err = ReadFile(link, nil)
	assert.ErrorContains(t, err, "symlink")

	data, err = ReadFile(link, &ReadOptions{FollowSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, "profiling: {}", string(data))

	_, err = ReadFile(file, &ReadOptions{MaxSize: 4})
	assert.ErrorContains(t, err, "limit is 4")

	_, err = ReadFile(dir, nil)
	assert.ErrorContains(t, err, "not a regular file")

	_, err = ReadFile(filepath.Join(dir, "missing"), nil)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "export.json")
	require.NoError(t, WriteFile(path, []byte("[1]"), 0o600))
	require.NoError(t, WriteFile(path, []byte("[2]"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2]", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestUint64ToInt64(t *testing.T) {
	tests := []struct {
		in      uint64
		want    int64
		clamped bool
	}{
		{0, 0, false},
		{12345, 12345, false},
		{math.MaxInt64, math.MaxInt64, false},
		{math.MaxInt64 + 1, math.MaxInt64, true},
		{math.MaxUint64, math.MaxInt64, true},
	}
	for _, tt := range tests {
		got, clamped := Uint64ToInt64(tt.in)
		assert.Equal(t, tt.want, got, "input %d", tt.in)
		assert.Equal(t, tt.clamped, clamped, "input %d", tt.in)
	}
}
