package pulse

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_Exclusions(t *testing.T) {
	site := testSite()
	settings := DefaultSettings()
	settings.SampleRate = 100
	settings.IgnoredPaths = []string{`^/healthz`}
	settings.ExcludeRules = []string{`user_agent.contains("bot")`}

	tests := []struct {
		name     string
		rc       RequestContext
		settings func(Settings) Settings
		reason   string
	}{
		{
			name:     "kill switch",
			rc:       RequestContext{Path: "/"},
			settings: func(s Settings) Settings { s.Disabled = true; return s },
			reason:   ReasonDisabled,
		},
		{name: "admin page", rc: RequestContext{Path: "/dashboard", Admin: true}, reason: ReasonAdmin},
		{name: "admin path", rc: RequestContext{Path: "/wp-admin/options.php"}, reason: ReasonAdmin},
		{name: "favicon", rc: RequestContext{Path: "/favicon.ico"}, reason: ReasonStaticAsset},
		{name: "stylesheet uppercase", rc: RequestContext{Path: "/assets/SITE.CSS"}, reason: ReasonStaticAsset},
		{name: "content image", rc: RequestContext{Path: "/wp-content/uploads/a.webp"}, reason: ReasonStaticAsset},
		{name: "configured ignore", rc: RequestContext{Path: "/healthz/live"}, reason: ReasonStaticAsset},
		{name: "cli", rc: RequestContext{Path: "/", CLI: true}, reason: ReasonCLI},
		{name: "ajax from admin", rc: RequestContext{Path: "/x", Admin: true, AJAX: true}, reason: ReasonAJAX},
		{name: "rest", rc: RequestContext{Path: "/wp-json/wp/v2/posts", REST: true}, reason: ReasonREST},
		{name: "cron", rc: RequestContext{Path: "/wp-cron.php", Cron: true}, reason: ReasonCron},
		{name: "exclusion rule", rc: RequestContext{Path: "/", UserAgent: "googlebot"}, reason: ReasonExcludedRule},
	}

	sampler := NewSampler(site, settings)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings
			if tt.settings != nil {
				s = tt.settings(s)
			}
			for i := 0; i < 50; i++ {
				d := sampler.Decide(tt.rc, s)
				assert.False(t, d.Profile)
				assert.Equal(t, tt.reason, d.Reason)
			}
		})
	}
}

func TestSampler_ProfilesEligibleRequestAtFullRate(t *testing.T) {
	settings := DefaultSettings()
	settings.SampleRate = 100
	sampler := NewSampler(testSite(), settings)

	d := sampler.Decide(RequestContext{Path: "/blog/hello-world/", Method: "GET"}, settings)
	assert.True(t, d.Profile)
	assert.Equal(t, ReasonSampled, d.Reason)
}

func TestSampler_RateConvergence(t *testing.T) {
	for _, rate := range []int{1, 2, 25, 50, 90} {
		settings := DefaultSettings()
		settings.SampleRate = rate
		sampler := NewSampler(testSite(), settings, WithRandSource(rand.NewSource(int64(rate))))

		const n = 100000
		hits := 0
		for i := 0; i < n; i++ {
			if sampler.ShouldProfile(RequestContext{Path: "/"}, settings) {
				hits++
			}
		}
		got := float64(hits) / n * 100
		assert.InDelta(t, float64(rate), got, 1.0, "rate %d", rate)
	}
}

func TestSampler_OutOfRangeRateIsClamped(t *testing.T) {
	settings := DefaultSettings()
	settings.SampleRate = 500
	sampler := NewSampler(testSite(), settings)
	for i := 0; i < 100; i++ {
		require.True(t, sampler.ShouldProfile(RequestContext{Path: "/"}, settings))
	}

	settings.SampleRate = -3
	hits := 0
	for i := 0; i < 10000; i++ {
		if sampler.ShouldProfile(RequestContext{Path: "/"}, settings) {
			hits++
		}
	}
	assert.Less(t, hits, 300)
}

func TestSampler_InvalidRulesAreDropped(t *testing.T) {
	settings := DefaultSettings()
	settings.SampleRate = 100
	settings.IgnoredPaths = []string{`([`}
	settings.ExcludeRules = []string{`path +`, `path.size()`, `method == "POST"`}

	sampler := NewSampler(testSite(), settings)
	require.Len(t, sampler.rules, 1)

	assert.Equal(t, ReasonExcludedRule, sampler.Decide(RequestContext{Path: "/", Method: "POST"}, settings).Reason)
	assert.Equal(t, ReasonSampled, sampler.Decide(RequestContext{Path: "/", Method: "GET"}, settings).Reason)
}

func TestValidateRule(t *testing.T) {
	require.NoError(t, ValidateRule(`host == "example.com" && path.startsWith("/shop")`))
	require.Error(t, ValidateRule(`path.startsWith(`))
	require.Error(t, ValidateRule(`unknown_var == 1`))
	require.Error(t, ValidateRule(`path`))
}
