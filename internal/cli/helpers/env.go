package helpers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/internal/fallback"
	"github.com/coral-mesh/pulse/internal/logging"
)

// Env carries the global flags and resolves configuration for commands.
type Env struct {
	Loader     *config.Loader
	ConfigPath string
	LogLevel   string

	cfg *config.Config
}

// NewEnv returns an Env using loader, or the default loader when nil.
func NewEnv(loader *config.Loader) *Env {
	if loader == nil {
		loader = config.NewLoader()
	}
	return &Env{Loader: loader}
}

// Config loads the configuration once per process.
func (e *Env) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := e.Loader.Load(e.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

// Logger builds the logger for cfg. --log-level wins over the file; without
// either, quiet commands log warnings only so tables stay readable.
func (e *Env) Logger(cfg *config.Config, quiet bool) zerolog.Logger {
	lc := cfg.LogConfig()
	switch {
	case e.LogLevel != "":
		lc.Level = e.LogLevel
	case quiet:
		lc.Level = zerolog.WarnLevel.String()
	}
	return logging.New(lc)
}

// OpenStore opens the reporting store. Read-only opens fail with a readable
// error when nothing has been recorded yet.
func OpenStore(cfg *config.Config, readOnly bool, logger zerolog.Logger) (*database.Database, error) {
	path := cfg.Storage.Path
	if readOnly {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no reporting store at %s (nothing profiled yet?)", path)
		}
	}
	db, err := database.New(path, cfg.OpenOptions(readOnly), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open reporting store: %w", err)
	}
	return db, nil
}

// OpenCache opens the badger fallback cache.
func OpenCache(cfg *config.Config, logger zerolog.Logger) (*fallback.Cache, error) {
	cache, err := fallback.Open(fallback.Options{Path: cfg.Cache.Path}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback cache: %w", err)
	}
	return cache, nil
}
