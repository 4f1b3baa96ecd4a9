package pulse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetByHandle(t *testing.T, assets []Asset, handle string) Asset {
	t.Helper()
	for _, a := range assets {
		if a.Handle == handle {
			return a
		}
	}
	require.Failf(t, "asset not tracked", "handle %q", handle)
	return Asset{}
}

func TestAssetMonitor_CaptureEnqueued(t *testing.T) {
	s := newTestSession(newFakeClock(), &fakeMemory{}, testFS())

	scripts := AssetQueue{
		Queue: []string{"jquery", "akismet-js", "cdn-lib"},
		Registered: map[string]RegisteredAsset{
			"jquery":     {Src: "/wp-includes/js/jquery.js", Version: "3.7", InFooter: false},
			"akismet-js": {Src: "https://example.com/wp-content/plugins/akismet/akismet.js?ver=5", Deps: []string{"jquery"}, InFooter: true},
			"cdn-lib":    {Src: "https://cdn.example.net/lib.js"},
		},
	}
	styles := AssetQueue{
		Queue: []string{"akismet-css", "child-style", "unregistered"},
		Registered: map[string]RegisteredAsset{
			"akismet-css": {Src: "https://example.com/wp-content/plugins/akismet/akismet.css", InFooter: true},
			"child-style": {Src: "/wp-content/themes/child/style.css"},
		},
	}

	s.CaptureEnqueued(scripts, styles)
	assets := s.Assets()
	require.Len(t, assets, 6)

	for i, a := range assets {
		assert.Equal(t, i+1, a.LoadOrder)
	}
	assert.Equal(t, "jquery", assets[0].Handle)
	assert.Equal(t, "akismet-css", assets[3].Handle, "scripts come before styles")

	jq := assetByHandle(t, assets, "jquery")
	assert.Equal(t, SourceCore, jq.Source)
	assert.Equal(t, "WordPress Core", jq.SourceName)
	require.NotNil(t, jq.Size)
	assert.Equal(t, int64(len("jQuery=function(){}")), *jq.Size)

	ak := assetByHandle(t, assets, "akismet-js")
	assert.Equal(t, SourcePlugin, ak.Source)
	assert.Equal(t, "Akismet Anti-Spam", ak.SourceName)
	assert.True(t, ak.InFooter)
	assert.Equal(t, []string{"jquery"}, ak.Dependencies)
	assert.Nil(t, ak.Size, "file does not exist")

	css := assetByHandle(t, assets, "akismet-css")
	assert.Equal(t, AssetCSS, css.Type)
	assert.False(t, css.InFooter, "in_footer only applies to scripts")
	require.NotNil(t, css.Size)
	assert.Equal(t, int64(6), *css.Size)

	cdn := assetByHandle(t, assets, "cdn-lib")
	assert.Equal(t, SourceCore, cdn.Source)
	assert.Nil(t, cdn.Size, "cross-origin assets have no size")

	child := assetByHandle(t, assets, "child-style")
	assert.Equal(t, SourceTheme, child.Source)
	assert.Equal(t, "Child Theme", child.SourceName)

	un := assetByHandle(t, assets, "unregistered")
	assert.Equal(t, "", un.Src)
	assert.Equal(t, SourceCore, un.Source)
}

func TestAssetMonitor_DedupeKeepsOrderAndPatchesSrc(t *testing.T) {
	s := newTestSession(newFakeClock(), &fakeMemory{}, testFS())

	q := AssetQueue{
		Queue:      []string{"h"},
		Registered: map[string]RegisteredAsset{"h": {Src: "/wp-content/plugins/seo/a.js"}},
	}
	s.CaptureEnqueued(q, AssetQueue{})
	s.CaptureEnqueued(AssetQueue{
		Queue:      []string{"h", "x"},
		Registered: map[string]RegisteredAsset{"h": {Src: "/other.js"}},
	}, AssetQueue{})
	s.OnAssetSrcResolved("h", "/wp-content/plugins/seo/a.js?ver=2")
	s.OnAssetSrcResolved("missing", "/nope.js")

	assets := s.Assets()
	require.Len(t, assets, 2)
	h := assets[0]
	assert.Equal(t, "h", h.Handle)
	assert.Equal(t, 1, h.LoadOrder)
	assert.Equal(t, "/wp-content/plugins/seo/a.js?ver=2", h.Src)
	assert.Equal(t, SourcePlugin, h.Source)
	assert.Equal(t, "Seo", h.SourceName)
	assert.Equal(t, 2, assets[1].LoadOrder)
}

func TestAssetMonitor_InlineContent(t *testing.T) {
	s := newTestSession(newFakeClock(), &fakeMemory{}, testFS())

	s.CaptureEnqueued(AssetQueue{
		Queue:      []string{"akismet-js"},
		Registered: map[string]RegisteredAsset{"akismet-js": {Src: "/wp-content/plugins/akismet/akismet.js"}},
	}, AssetQueue{})

	long := strings.Repeat("a", 1500)
	scripts := AssetQueue{
		Queue:  []string{"akismet-js"},
		Inline: map[string]string{"akismet-js": "var x = 1;", "orphan": long, "empty": ""},
	}
	styles := AssetQueue{Inline: map[string]string{"global": "body{}"}}
	s.CaptureInlineContent(scripts, styles)
	s.CaptureInlineContent(scripts, styles)

	assets := s.Assets()
	require.Len(t, assets, 4)

	inline := assetByHandle(t, assets, "akismet-js_inline")
	assert.Equal(t, 2, inline.LoadOrder)
	assert.Equal(t, SourcePlugin, inline.Source)
	assert.Equal(t, "Akismet Anti-Spam", inline.SourceName)
	assert.Empty(t, inline.Src)
	require.NotNil(t, inline.InlineContent)
	assert.Equal(t, "var x = 1;", *inline.InlineContent)

	orphan := assetByHandle(t, assets, "orphan_inline")
	assert.Equal(t, 3, orphan.LoadOrder)
	assert.Equal(t, SourceCore, orphan.Source)
	assert.Len(t, *orphan.InlineContent, MaxInlineContentLen)
	assert.Equal(t, int64(1500), *orphan.Size)

	global := assetByHandle(t, assets, "global_inline")
	assert.Equal(t, AssetCSS, global.Type)
	assert.Equal(t, 4, global.LoadOrder)
}

func TestAssetMonitor_LocalPath(t *testing.T) {
	site := testSite()
	site.URL = "https://example.com/blog"
	m := newAssetMonitor(site, newNameResolver(site.Roots, nil), nil, newFakeClock().Now)

	tests := []struct {
		src  string
		want string
		ok   bool
	}{
		{"https://example.com/blog/wp-content/a.css?ver=1", "wp-content/a.css", true},
		{"//EXAMPLE.com/blog/wp-includes/b.js", "wp-includes/b.js", true},
		{"https://example.com/other/c.js", "", false},
		{"https://cdn.net/blog/c.js", "", false},
		{"/wp-content/d.css", "wp-content/d.css", true},
		{"/../etc/passwd", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, ok := m.localPath(tt.src)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
