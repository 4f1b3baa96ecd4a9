package pulse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveOwner(t *testing.T) {
	roots := testSite().Roots

	tests := []struct {
		path string
		want Owner
	}{
		{"wp-content/plugins/akismet/akismet.php", Owner{Kind: OwnerPlugin, Slug: "akismet", Rel: "akismet/akismet.php"}},
		{"/wp-content/plugins/hello.php", Owner{Kind: OwnerPlugin, Slug: "hello.php", Rel: "hello.php", SingleFile: true}},
		{"wp-content/themes/child/functions.php", Owner{Kind: OwnerTheme, Slug: "child", Rel: "functions.php"}},
		{"wp-content/themes/parent/inc/x.php", Owner{Kind: OwnerTheme, Slug: "parent", Rel: "inc/x.php"}},
		{"wp-content/themes/other/functions.php", Owner{Kind: OwnerNone}},
		{"wp-content/mu-plugins/loader.php", Owner{Kind: OwnerMUPlugin, Slug: "loader.php", Rel: "loader.php"}},
		{`wp-content\plugins\seo\index.php`, Owner{Kind: OwnerPlugin, Slug: "seo", Rel: "seo/index.php"}},
		{"wp-includes/load.php", Owner{Kind: OwnerNone}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveOwner(tt.path, roots))
		})
	}
}

func TestResolveOwner_PluginRootWinsOverTheme(t *testing.T) {
	roots := testSite().Roots
	roots.ThemesDir = "wp-content/plugins"
	roots.Stylesheet = "akismet"

	o := ResolveOwner("wp-content/plugins/akismet/akismet.php", roots)
	assert.Equal(t, OwnerPlugin, o.Kind)
}

func TestIsTrackable(t *testing.T) {
	roots := testSite().Roots

	assert.True(t, IsTrackable("wp-content/plugins/akismet/akismet.php", roots))
	assert.True(t, IsTrackable("wp-content/themes/child/functions.php", roots))
	assert.True(t, IsTrackable("wp-content/mu-plugins/loader.php", roots))

	assert.False(t, IsTrackable("wp-content/plugins/akismet/akismet.css", roots))
	assert.False(t, IsTrackable("wp-includes/load.php", roots))
	assert.False(t, IsTrackable("wp-config.php", roots))
	assert.False(t, IsTrackable("wp-content/plugins/akismet/.htaccess", roots))
	assert.False(t, IsTrackable("wp-content/themes/other/functions.php", roots))
	assert.False(t, IsTrackable("", roots))
}

func TestActiveSet(t *testing.T) {
	active := newActiveSet(testSite().ActivePlugins, ".php")

	assert.True(t, active.isActive(Owner{Kind: OwnerPlugin, Slug: "akismet"}))
	assert.True(t, active.isActive(Owner{Kind: OwnerPlugin, Slug: "seo"}))
	assert.True(t, active.isActive(Owner{Kind: OwnerPlugin, Slug: "hello.php", SingleFile: true}))
	assert.False(t, active.isActive(Owner{Kind: OwnerPlugin, Slug: "inactive"}))
	assert.True(t, active.isActive(Owner{Kind: OwnerTheme, Slug: "child"}))
	assert.True(t, active.isActive(Owner{Kind: OwnerMUPlugin, Slug: "loader.php"}))
	assert.False(t, active.isActive(Owner{}))
}
