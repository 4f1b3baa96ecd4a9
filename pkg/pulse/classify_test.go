package pulse

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeRequest(t *testing.T) {
	site := DefaultSite()
	tests := []struct {
		uri  string
		want RequestType
	}{
		{"/", RequestTypePage},
		{"/about/", RequestTypePage},
		{"/wp-content/themes/x/style.css", RequestTypeAsset},
		{"/app.JS?ver=2", RequestTypeAsset},
		{"/logo.png", RequestTypeImage},
		{"/icons/a.svg", RequestTypeImage},
		{"/wp-json/wp/v2/posts", RequestTypeAPI},
		{"/feed/", RequestTypeFeed},
		{"/category/news/rss", RequestTypeFeed},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeRequest(tt.uri, site))
		})
	}
}

func TestClassifyRequest(t *testing.T) {
	site := DefaultSite()

	r := httptest.NewRequest("GET", "/blog/?p=1", nil)
	r.Header.Set("User-Agent", "curl/8")
	rc := ClassifyRequest(r, site)
	assert.Equal(t, "/blog/?p=1", rc.Path)
	assert.Equal(t, "GET", rc.Method)
	assert.Equal(t, "curl/8", rc.UserAgent)
	assert.Equal(t, "example.com", rc.Host)
	assert.False(t, rc.Admin || rc.AJAX || rc.REST || rc.Cron || rc.CLI)

	rc = ClassifyRequest(httptest.NewRequest("POST", "/wp-admin/admin-ajax.php?action=x", nil), site)
	assert.True(t, rc.Admin)
	assert.True(t, rc.AJAX)

	rc = ClassifyRequest(httptest.NewRequest("GET", "/wp-admin/index.php", nil), site)
	assert.True(t, rc.Admin)
	assert.False(t, rc.AJAX)

	rc = ClassifyRequest(httptest.NewRequest("GET", "/?rest_route=/wp/v2/posts", nil), site)
	assert.True(t, rc.REST)

	rc = ClassifyRequest(httptest.NewRequest("GET", "/wp-cron.php?doing_wp_cron=1", nil), site)
	assert.True(t, rc.Cron)
}

func TestClassifyRequest_NilURL(t *testing.T) {
	r := &http.Request{Method: "GET", RequestURI: "/about/"}
	rc := ClassifyRequest(r, DefaultSite())
	assert.Equal(t, "/about/", rc.Path)
	assert.False(t, rc.Admin)
	assert.False(t, rc.REST)

	rc = ClassifyRequest(&http.Request{Method: "GET"}, DefaultSite())
	assert.Equal(t, "/", rc.Path)
}
