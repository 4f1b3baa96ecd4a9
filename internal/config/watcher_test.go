package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsValidChanges(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, "profiling:\n  sample_rate: 5\n")
	loader := NewLoaderWithHome(home)

	var (
		mu   sync.Mutex
		seen []int
	)
	w := NewWatcher(loader, path, zerolog.Nop(), func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, cfg.Profiling.SampleRate)
	})
	w.debounce = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("profiling:\n  sample_rate: 50\n"), 0o600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == 50
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, "dashboard:\n  port: 0\n")

	calls := 0
	w := NewWatcher(NewLoaderWithHome(home), path, zerolog.Nop(), func(*Config) { calls++ })
	w.reload()
	assert.Zero(t, calls)

	require.NoError(t, os.WriteFile(path, []byte("dashboard:\n  port: 8081\n"), 0o600))
	w.reload()
	assert.Equal(t, 1, calls)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(NewLoaderWithHome(t.TempDir()), "/nonexistent/dir/config.yaml", zerolog.Nop(), func(*Config) {})
	assert.Error(t, w.Run(context.Background()))
}
