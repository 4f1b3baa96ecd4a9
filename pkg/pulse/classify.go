package pulse

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// RequestContext is what the sampler knows about a request.
type RequestContext struct {
	// Path is the request URI including the query string.
	Path      string
	Method    string
	UserAgent string
	Host      string

	Admin bool
	AJAX  bool
	REST  bool
	CLI   bool
	Cron  bool
}

// ClassifyRequest derives a RequestContext from an HTTP request and the site layout.
func ClassifyRequest(r *http.Request, site Site) RequestContext {
	u := r.URL
	if u == nil {
		u = &url.URL{}
	}
	uri := r.RequestURI
	if uri == "" {
		uri = u.RequestURI()
	}
	p := u.Path
	q := u.Query()

	rc := RequestContext{
		Path:      uri,
		Method:    r.Method,
		UserAgent: r.UserAgent(),
		Host:      r.Host,
	}

	rc.AJAX = site.AJAXPath != "" && p == strings.TrimRight(site.AJAXPath, "?")
	rc.Admin = site.AdminPath != "" && strings.HasPrefix(p, site.AdminPath)
	rc.REST = (site.RESTPrefix != "" && strings.HasPrefix(p, site.RESTPrefix)) || q.Has("rest_route")
	rc.Cron = (site.CronPath != "" && p == site.CronPath) || q.Has("doing_wp_cron")

	return rc
}

var (
	assetURI = regexp.MustCompile(`(?i)\.(css|js)$`)
	imageURI = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|svg|ico)$`)
	feedURI  = regexp.MustCompile(`/feed/|/rss`)
)

// CategorizeRequest assigns the coarse RequestType stored with a profile.
func CategorizeRequest(uri string, site Site) RequestType {
	p := uri
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	switch {
	case assetURI.MatchString(p):
		return RequestTypeAsset
	case imageURI.MatchString(p):
		return RequestTypeImage
	case site.RESTPrefix != "" && strings.Contains(uri, site.RESTPrefix):
		return RequestTypeAPI
	case feedURI.MatchString(uri):
		return RequestTypeFeed
	default:
		return RequestTypePage
	}
}
