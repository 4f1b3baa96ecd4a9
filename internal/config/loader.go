package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/pulse/internal/constants"
	"github.com/coral-mesh/pulse/internal/safe"
)

// Loader resolves, reads and writes the configuration file.
type Loader struct {
	home string
}

// NewLoader returns a loader rooted at the user's home directory, or at a
// temporary directory when the process has no home (scratch containers).
func NewLoader() *Loader {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = filepath.Join(os.TempDir(), "pulse-fallback")
	}
	return &Loader{home: home}
}

// NewLoaderWithHome is NewLoader with an explicit home directory.
func NewLoaderWithHome(home string) *Loader {
	return &Loader{home: home}
}

// Home returns the directory "~" expands to.
func (l *Loader) Home() string { return l.home }

// DefaultPath is $PULSE_CONFIG, else ~/.pulse/config.yaml.
func (l *Loader) DefaultPath() string {
	if p := os.Getenv(constants.ConfigEnv); p != "" {
		return l.expand(p)
	}
	return filepath.Join(l.home, constants.DefaultDir, constants.ConfigFile)
}

// Load reads path (DefaultPath when empty) over the defaults, applies
// environment overrides, then normalizes and validates the result. A missing
// file is not an error.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		path = l.DefaultPath()
	}
	path = l.expand(path)

	cfg := Default(l.home)
	data, err := safe.ReadFile(path, nil)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := MergeFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.Storage.Path = l.expand(cfg.Storage.Path)
	cfg.Cache.Path = l.expand(cfg.Cache.Path)
	cfg.Site.Root = l.expand(cfg.Site.Root)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save atomically writes cfg as YAML, creating parent directories.
func (l *Loader) Save(path string, cfg *Config) error {
	if path == "" {
		path = l.DefaultPath()
	}
	path = l.expand(path)

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := safe.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

func (l *Loader) expand(p string) string {
	if p == "~" {
		return l.home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(l.home, p[2:])
	}
	return p
}
