// Package safe wraps file and integer operations that are easy to get wrong:
// bounded reads that refuse symlinks, atomic writes and overflow-checked
// conversions.
package safe

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultMaxFileSize bounds ReadFile when no limit is given.
const DefaultMaxFileSize = 1 << 20

// ReadOptions adjust ReadFile.
type ReadOptions struct {
	// MaxSize in bytes; zero means DefaultMaxFileSize.
	MaxSize int64
	// FollowSymlinks permits path to be a symlink.
	FollowSymlinks bool
}

// ReadFile reads a regular file of bounded size. Symlinks are refused unless
// opts allows them. Missing files return an error matching fs.ErrNotExist.
func ReadFile(path string, opts *ReadOptions) ([]byte, error) {
	if opts == nil {
		opts = &ReadOptions{}
	}
	limit := opts.MaxSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}

	clean := filepath.Clean(path)
	info, err := os.Lstat(clean)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if !opts.FollowSymlinks {
			return nil, fmt.Errorf("%s is a symlink", path)
		}
		if info, err = os.Stat(clean); err != nil {
			return nil, err
		}
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), limit)
	}
	return os.ReadFile(clean) // #nosec G304 - validated above
}

// WriteFile writes data next to path and renames it into place, so readers
// never see a partial file. Parent directories are created.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}

// Uint64ToInt64 converts v, clamping at math.MaxInt64. The boolean reports
// whether clamping happened.
func Uint64ToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(v), false
}
