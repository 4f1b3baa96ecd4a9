// Package constants defines shared file names, ports and timeouts.
package constants

import "time"

const (
	// ConfigEnv overrides the configuration file path.
	ConfigEnv = "PULSE_CONFIG"

	// DefaultDir is created under the user's home directory.
	DefaultDir = ".pulse"

	ConfigFile   = "config.yaml"
	DatabaseFile = "pulse.duckdb"
	CacheDir     = "cache"

	DefaultDashboardHost = "127.0.0.1"
	DefaultDashboardPort = 9470
)

const (
	// DefaultQueryTimeout bounds a single dashboard or CLI read.
	DefaultQueryTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of the dashboard server.
	DefaultShutdownTimeout = 10 * time.Second

	DefaultRetentionInterval = 24 * time.Hour
	DefaultReloadDebounce    = 250 * time.Millisecond
)
