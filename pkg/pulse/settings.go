package pulse

import (
	"time"
)

// Bounds and defaults for the tunable profiling settings.
const (
	MinSampleRate     = 1
	MaxSampleRate     = 100
	DefaultSampleRate = 2

	MinSlowQueryThreshold     = 10
	MaxSlowQueryThreshold     = 1000
	DefaultSlowQueryThreshold = 50

	DefaultFlushTimeout     = 5 * time.Second
	DefaultLatestProfileTTL = time.Hour
	DefaultCheckpointTTL    = 5 * time.Minute
)

// Settings are the profiling knobs read once per request.
type Settings struct {
	// Disabled is the global kill switch.
	Disabled bool

	// SampleRate is the percentage of eligible requests to profile.
	SampleRate int

	// SlowQueryThreshold is the slow-query cutoff in milliseconds.
	SlowQueryThreshold int

	// SaveQueries makes the session retain a full per-query log.
	// Without it only the query count is known.
	SaveQueries bool

	// SimulateSlowQueries enables the degraded heuristic used when no query
	// log is retained. Off by default because the entry it adds is synthetic.
	SimulateSlowQueries bool

	// IgnoredPaths are extra case-insensitive path patterns that are never profiled.
	IgnoredPaths []string

	// ExcludeRules are CEL expressions; a request matching any of them is skipped.
	ExcludeRules []string

	FlushTimeout     time.Duration
	LatestProfileTTL time.Duration
	CheckpointTTL    time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:         DefaultSampleRate,
		SlowQueryThreshold: DefaultSlowQueryThreshold,
		SaveQueries:        true,
		FlushTimeout:       DefaultFlushTimeout,
		LatestProfileTTL:   DefaultLatestProfileTTL,
		CheckpointTTL:      DefaultCheckpointTTL,
	}
}

// Normalize clamps out-of-range values to the nearest bound and fills zero durations.
func (s Settings) Normalize() Settings {
	s.SampleRate = ClampSampleRate(s.SampleRate)
	s.SlowQueryThreshold = ClampSlowQueryThreshold(s.SlowQueryThreshold)
	if s.FlushTimeout <= 0 {
		s.FlushTimeout = DefaultFlushTimeout
	}
	if s.LatestProfileTTL <= 0 {
		s.LatestProfileTTL = DefaultLatestProfileTTL
	}
	if s.CheckpointTTL <= 0 {
		s.CheckpointTTL = DefaultCheckpointTTL
	}
	return s
}

// ClampSampleRate forces a sample rate into [1,100].
func ClampSampleRate(rate int) int {
	return clampInt(rate, MinSampleRate, MaxSampleRate)
}

// ClampSlowQueryThreshold forces a threshold into [10,1000] ms.
func ClampSlowQueryThreshold(ms int) int {
	return clampInt(ms, MinSlowQueryThreshold, MaxSlowQueryThreshold)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Site describes the host installation being profiled.
type Site struct {
	// URL is the site origin used for same-origin asset checks.
	URL string

	AdminPath  string
	AJAXPath   string
	RESTPrefix string
	CronPath   string

	// CoreName is the source name reported for core assets.
	CoreName string

	Roots Roots

	// ActivePlugins lists active plugin files relative to the plugins dir,
	// e.g. "akismet/akismet.php" or "hello.php".
	ActivePlugins []string
}

// DefaultSite returns the layout of a stock installation.
func DefaultSite() Site {
	return Site{
		URL:        "http://localhost",
		AdminPath:  "/wp-admin/",
		AJAXPath:   "/wp-admin/admin-ajax.php",
		RESTPrefix: "/wp-json/",
		CronPath:   "/wp-cron.php",
		CoreName:   "WordPress Core",
		Roots:      DefaultRoots(),
	}
}
