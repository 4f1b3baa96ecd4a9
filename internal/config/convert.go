package config

import (
	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/internal/logging"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

// Settings returns the per-request profiling settings.
func (c *Config) Settings() pulse.Settings {
	return pulse.Settings{
		Disabled:            c.Profiling.Disabled,
		SampleRate:          c.Profiling.SampleRate,
		SlowQueryThreshold:  c.Profiling.SlowQueryThreshold,
		SaveQueries:         c.Profiling.SaveQueries,
		SimulateSlowQueries: c.Profiling.SimulateSlowQueries,
		IgnoredPaths:        append([]string(nil), c.Profiling.IgnoredPaths...),
		ExcludeRules:        append([]string(nil), c.Profiling.ExcludeRules...),
		FlushTimeout:        c.Profiling.FlushTimeout,
		LatestProfileTTL:    c.Cache.LatestProfileTTL,
		CheckpointTTL:       c.Cache.CheckpointTTL,
	}.Normalize()
}

// SiteLayout returns the installation layout.
func (c *Config) SiteLayout() pulse.Site {
	s := c.Site
	return pulse.Site{
		URL:        s.URL,
		AdminPath:  s.AdminPath,
		AJAXPath:   s.AJAXPath,
		RESTPrefix: s.RESTPrefix,
		CronPath:   s.CronPath,
		CoreName:   s.CoreName,
		Roots: pulse.Roots{
			ContentDir:   s.ContentDir,
			PluginsDir:   s.PluginsDir,
			MUPluginsDir: s.MUPluginsDir,
			ThemesDir:    s.ThemesDir,
			Template:     s.Template,
			Stylesheet:   s.Stylesheet,
			CoreDirs:     append([]string(nil), s.CoreDirs...),
			SkipFiles:    append([]string(nil), s.SkipFiles...),
			CodeExt:      s.CodeExtension,
		},
		ActivePlugins: append([]string(nil), s.ActivePlugins...),
	}
}

// OpenOptions returns the DuckDB open options for the store.
func (c *Config) OpenOptions(readOnly bool) duckdb.OpenOptions {
	return duckdb.OpenOptions{
		ReadOnly:    readOnly,
		Threads:     c.Storage.Threads,
		MemoryLimit: c.Storage.MemoryLimit,
	}
}

// LogConfig returns the logger configuration.
func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
