package config

import (
	"path/filepath"

	"github.com/coral-mesh/pulse/internal/constants"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

// Default returns the configuration used when no file exists. home is the
// base for storage and cache paths.
func Default(home string) *Config {
	settings := pulse.DefaultSettings()
	site := pulse.DefaultSite()
	base := filepath.Join(home, constants.DefaultDir)

	return &Config{
		Profiling: ProfilingConfig{
			SampleRate:         settings.SampleRate,
			SlowQueryThreshold: settings.SlowQueryThreshold,
			SaveQueries:        settings.SaveQueries,
			IgnoredPaths:       []string{},
			ExcludeRules:       []string{},
			MemorySource:       "process",
			FlushTimeout:       settings.FlushTimeout,
		},
		Site: SiteConfig{
			URL:           site.URL,
			Root:          "/var/www/html",
			ContentDir:    site.Roots.ContentDir,
			PluginsDir:    site.Roots.PluginsDir,
			MUPluginsDir:  site.Roots.MUPluginsDir,
			ThemesDir:     site.Roots.ThemesDir,
			CoreDirs:      site.Roots.CoreDirs,
			SkipFiles:     site.Roots.SkipFiles,
			CodeExtension: site.Roots.CodeExt,
			AdminPath:     site.AdminPath,
			AJAXPath:      site.AJAXPath,
			RESTPrefix:    site.RESTPrefix,
			CronPath:      site.CronPath,
			CoreName:      site.CoreName,
			ActivePlugins: []string{},
		},
		Storage: StorageConfig{
			Path:              filepath.Join(base, constants.DatabaseFile),
			RetentionDays:     database.DefaultRetentionDays,
			RetentionInterval: constants.DefaultRetentionInterval,
		},
		Cache: CacheConfig{
			Path:             filepath.Join(base, constants.CacheDir),
			LatestProfileTTL: settings.LatestProfileTTL,
			CheckpointTTL:    settings.CheckpointTTL,
		},
		Dashboard: DashboardConfig{
			Host:           constants.DefaultDashboardHost,
			Port:           constants.DefaultDashboardPort,
			AggregateLimit: database.DefaultAggregateLimit,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
