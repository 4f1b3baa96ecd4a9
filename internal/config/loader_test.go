package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/pkg/pulse"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := NewLoaderWithHome(home).Load(filepath.Join(home, "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, pulse.DefaultSampleRate, cfg.Profiling.SampleRate)
	assert.Equal(t, pulse.DefaultSlowQueryThreshold, cfg.Profiling.SlowQueryThreshold)
	assert.True(t, cfg.Profiling.SaveQueries)
	assert.False(t, cfg.Profiling.SimulateSlowQueries)
	assert.Equal(t, filepath.Join(home, ".pulse", "pulse.duckdb"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(home, ".pulse", "cache"), cfg.Cache.Path)
	assert.Equal(t, 9470, cfg.Dashboard.Port)
	assert.Equal(t, time.Hour, cfg.Cache.LatestProfileTTL)
}

func TestLoad_FileClampsAndExpands(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, `
profiling:
  sample_rate: 250
  slow_query_threshold_ms: 3
  ignored_paths: ["^/healthz"]
  exclude_rules: ['path.startsWith("/internal/")']
site:
  url: https://shop.example.com
  template: storefront
  active_plugins: [woocommerce/woocommerce.php]
storage:
  path: ~/data/p.duckdb
dashboard:
  port: 8080
`)

	cfg, err := NewLoaderWithHome(home).Load(path)
	require.NoError(t, err)

	assert.Equal(t, pulse.MaxSampleRate, cfg.Profiling.SampleRate)
	assert.Equal(t, pulse.MinSlowQueryThreshold, cfg.Profiling.SlowQueryThreshold)
	assert.Equal(t, []string{"^/healthz"}, cfg.Profiling.IgnoredPaths)
	assert.Equal(t, filepath.Join(home, "data", "p.duckdb"), cfg.Storage.Path)
	assert.Equal(t, 8080, cfg.Dashboard.Port)
	assert.Equal(t, "wp-content/plugins", cfg.Site.PluginsDir, "unset keys keep defaults")

	site := cfg.SiteLayout()
	assert.Equal(t, "https://shop.example.com", site.URL)
	assert.Equal(t, "storefront", site.Roots.Template)
	assert.Equal(t, []string{"woocommerce/woocommerce.php"}, site.ActivePlugins)

	settings := cfg.Settings()
	assert.Equal(t, 100, settings.SampleRate)
	assert.Len(t, settings.ExcludeRules, 1)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, "profiling:\n  sample_rate: 10\n")

	t.Setenv("PULSE_SAMPLE_RATE", "0")
	t.Setenv("PULSE_DISABLE_PROFILING", "true")
	t.Setenv("PULSE_ACTIVE_PLUGINS", "a/a.php, hello.php")
	t.Setenv("PULSE_FLUSH_TIMEOUT", "750ms")

	cfg, err := NewLoaderWithHome(home).Load(path)
	require.NoError(t, err)
	assert.Equal(t, pulse.MinSampleRate, cfg.Profiling.SampleRate, "env value is clamped too")
	assert.True(t, cfg.Profiling.Disabled)
	assert.Equal(t, []string{"a/a.php", "hello.php"}, cfg.Site.ActivePlugins)
	assert.Equal(t, 750*time.Millisecond, cfg.Profiling.FlushTimeout)
}

func TestLoad_ConfigEnvSelectsFile(t *testing.T) {
	home := t.TempDir()
	path := writeConfig(t, home, "dashboard:\n  port: 7000\n")
	t.Setenv("PULSE_CONFIG", path)

	l := NewLoaderWithHome(home)
	assert.Equal(t, path, l.DefaultPath())
	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Dashboard.Port)
}

func TestLoad_Errors(t *testing.T) {
	home := t.TempDir()

	_, err := NewLoaderWithHome(home).Load(writeConfig(t, home, "profiling: [not a map"))
	require.Error(t, err)

	path := writeConfig(t, home, `
profiling:
  memory_source: disk
  exclude_rules: ['path +']
dashboard:
  port: 70000
`)
	_, err = NewLoaderWithHome(home).Load(path)
	var multi *MultiValidationError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 3)

	t.Setenv("PULSE_SAMPLE_RATE", "often")
	_, err = NewLoaderWithHome(home).Load(filepath.Join(home, "none.yaml"))
	assert.ErrorContains(t, err, "PULSE_SAMPLE_RATE")
}

func TestSave_RoundTrip(t *testing.T) {
	home := t.TempDir()
	l := NewLoaderWithHome(home)

	cfg := Default(home)
	cfg.Profiling.SampleRate = 42
	cfg.Site.Stylesheet = "child"
	path := filepath.Join(home, "nested", "config.yaml")
	require.NoError(t, l.Save(path, cfg))

	got, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Profiling.SampleRate)
	assert.Equal(t, "child", got.Site.Stylesheet)
}
