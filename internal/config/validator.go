package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/pkg/pulse"
)

// ValidationError is a problem with one config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError collects every problem found in one pass.
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Validate reports structural problems. Numeric ranges that can be clamped
// are left to Normalize.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Profiling.MemorySource {
	case "", "process", "heap":
	default:
		add("profiling.memory_source", "must be 'process' or 'heap', got %q", c.Profiling.MemorySource)
	}
	for i, pattern := range c.Profiling.IgnoredPaths {
		if _, err := regexp.Compile(pattern); err != nil {
			add(fmt.Sprintf("profiling.ignored_paths[%d]", i), "invalid pattern: %v", err)
		}
	}
	for i, rule := range c.Profiling.ExcludeRules {
		if err := pulse.ValidateRule(rule); err != nil {
			add(fmt.Sprintf("profiling.exclude_rules[%d]", i), "%v", err)
		}
	}

	if u, err := url.Parse(c.Site.URL); err != nil || u.Scheme == "" || u.Host == "" {
		add("site.url", "must be an absolute URL, got %q", c.Site.URL)
	}
	if c.Site.PluginsDir == "" {
		add("site.plugins_dir", "is required")
	}
	if c.Site.ThemesDir == "" {
		add("site.themes_dir", "is required")
	}

	if c.Storage.Path == "" {
		add("storage.path", "is required")
	}
	if c.Storage.RetentionDays < 0 {
		add("storage.retention_days", "must not be negative")
	}
	if c.Cache.Path == "" {
		add("cache.path", "is required")
	}

	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		add("dashboard.port", "must be between 1 and 65535, got %d", c.Dashboard.Port)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}

// Normalize clamps ranged values and fills zero durations and limits.
func (c *Config) Normalize() {
	c.Profiling.SampleRate = pulse.ClampSampleRate(c.Profiling.SampleRate)
	c.Profiling.SlowQueryThreshold = pulse.ClampSlowQueryThreshold(c.Profiling.SlowQueryThreshold)
	if c.Profiling.MemorySource == "" {
		c.Profiling.MemorySource = "process"
	}

	def := Default("")
	if c.Profiling.FlushTimeout <= 0 {
		c.Profiling.FlushTimeout = def.Profiling.FlushTimeout
	}
	if c.Storage.RetentionInterval <= 0 {
		c.Storage.RetentionInterval = def.Storage.RetentionInterval
	}
	if c.Cache.LatestProfileTTL <= 0 {
		c.Cache.LatestProfileTTL = def.Cache.LatestProfileTTL
	}
	if c.Cache.CheckpointTTL <= 0 {
		c.Cache.CheckpointTTL = def.Cache.CheckpointTTL
	}
	if c.Dashboard.AggregateLimit <= 0 {
		c.Dashboard.AggregateLimit = def.Dashboard.AggregateLimit
	}
	if c.Site.CodeExtension != "" && !strings.HasPrefix(c.Site.CodeExtension, ".") {
		c.Site.CodeExtension = "." + c.Site.CodeExtension
	}
}
