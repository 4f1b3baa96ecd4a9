package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/constants"
)

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	loader   *Loader
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	onChange func(*Config)
}

// NewWatcher watches path and calls onChange with every valid reload.
// Invalid edits are logged and the previous configuration stays in effect.
func NewWatcher(loader *Loader, path string, logger zerolog.Logger, onChange func(*Config)) *Watcher {
	if path == "" {
		path = loader.DefaultPath()
	}
	return &Watcher{
		loader:   loader,
		path:     loader.expand(path),
		debounce: constants.DefaultReloadDebounce,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		onChange: onChange,
	}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info().Str("path", w.path).Msg("Watching configuration")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, w.reload)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Ignoring invalid configuration change")
		return
	}
	w.logger.Info().
		Int("sample_rate", cfg.Profiling.SampleRate).
		Bool("disabled", cfg.Profiling.Disabled).
		Msg("Configuration reloaded")
	w.onChange(cfg)
}
