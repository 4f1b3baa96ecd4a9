// Package config loads the pulse configuration from YAML with environment
// overrides, clamps out-of-range values and watches the file for changes.
package config

import "time"

// Config is the root of config.yaml.
type Config struct {
	Profiling ProfilingConfig `yaml:"profiling"`
	Site      SiteConfig      `yaml:"site"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProfilingConfig holds the sampler and monitor knobs.
type ProfilingConfig struct {
	Disabled            bool          `yaml:"disabled" env:"PULSE_DISABLE_PROFILING"`
	SampleRate          int           `yaml:"sample_rate" env:"PULSE_SAMPLE_RATE"`
	SlowQueryThreshold  int           `yaml:"slow_query_threshold_ms" env:"PULSE_SLOW_QUERY_THRESHOLD"`
	SaveQueries         bool          `yaml:"save_queries" env:"PULSE_SAVE_QUERIES"`
	SimulateSlowQueries bool          `yaml:"simulate_slow_queries" env:"PULSE_SIMULATE_SLOW_QUERIES"`
	IgnoredPaths        []string      `yaml:"ignored_paths" env:"PULSE_IGNORED_PATHS"`
	ExcludeRules        []string      `yaml:"exclude_rules"`
	MemorySource        string        `yaml:"memory_source" env:"PULSE_MEMORY_SOURCE"`
	FlushTimeout        time.Duration `yaml:"flush_timeout" env:"PULSE_FLUSH_TIMEOUT"`
}

// SiteConfig describes the profiled installation.
type SiteConfig struct {
	URL           string   `yaml:"url" env:"PULSE_SITE_URL"`
	Root          string   `yaml:"root" env:"PULSE_SITE_ROOT"`
	ContentDir    string   `yaml:"content_dir"`
	PluginsDir    string   `yaml:"plugins_dir"`
	MUPluginsDir  string   `yaml:"mu_plugins_dir"`
	ThemesDir     string   `yaml:"themes_dir"`
	Template      string   `yaml:"template" env:"PULSE_SITE_TEMPLATE"`
	Stylesheet    string   `yaml:"stylesheet" env:"PULSE_SITE_STYLESHEET"`
	CoreDirs      []string `yaml:"core_dirs"`
	SkipFiles     []string `yaml:"skip_files"`
	CodeExtension string   `yaml:"code_extension"`
	AdminPath     string   `yaml:"admin_path"`
	AJAXPath      string   `yaml:"ajax_path"`
	RESTPrefix    string   `yaml:"rest_prefix"`
	CronPath      string   `yaml:"cron_path"`
	CoreName      string   `yaml:"core_name"`
	ActivePlugins []string `yaml:"active_plugins" env:"PULSE_ACTIVE_PLUGINS"`
}

// StorageConfig locates the DuckDB reporting store.
type StorageConfig struct {
	Path              string        `yaml:"path" env:"PULSE_STORAGE_PATH"`
	RetentionDays     int           `yaml:"retention_days" env:"PULSE_RETENTION_DAYS"`
	RetentionInterval time.Duration `yaml:"retention_interval"`
	Threads           int           `yaml:"threads"`
	MemoryLimit       string        `yaml:"memory_limit"`
}

// CacheConfig locates the badger fallback cache.
type CacheConfig struct {
	Path             string        `yaml:"path" env:"PULSE_CACHE_PATH"`
	LatestProfileTTL time.Duration `yaml:"latest_profile_ttl"`
	CheckpointTTL    time.Duration `yaml:"checkpoint_ttl"`
}

// DashboardConfig controls the HTTP API.
type DashboardConfig struct {
	Host           string `yaml:"host" env:"PULSE_DASHBOARD_HOST"`
	Port           int    `yaml:"port" env:"PULSE_DASHBOARD_PORT"`
	AggregateLimit int    `yaml:"aggregate_limit"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"PULSE_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PULSE_LOG_PRETTY"`
}
