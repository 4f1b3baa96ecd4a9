package pulse

import (
	"io/fs"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// MaxInlineContentLen bounds the stored preview of inline asset content.
const MaxInlineContentLen = 1000

// RegisteredAsset is the host's registration of an asset handle.
type RegisteredAsset struct {
	Src      string
	Version  string
	Deps     []string
	InFooter bool
}

// AssetQueue is the host's view of one asset kind (scripts or styles) at render time.
type AssetQueue struct {
	// Queue lists enqueued handles in enqueue order.
	Queue []string

	Registered map[string]RegisteredAsset

	// Inline maps a handle to inline content printed alongside it.
	Inline map[string]string
}

// assetMonitor tracks the assets of one request, deduplicated by handle.
type assetMonitor struct {
	site  Site
	names *nameResolver
	stat  func(name string) (fs.FileInfo, error)
	now   func() time.Time

	pluginSrc *regexp.Regexp
	themeSrc  *regexp.Regexp
	siteURL   *url.URL

	mu     sync.Mutex
	order  int
	assets map[string]*Asset
}

func newAssetMonitor(site Site, names *nameResolver, stat func(string) (fs.FileInfo, error), now func() time.Time) *assetMonitor {
	m := &assetMonitor{
		site:      site,
		names:     names,
		stat:      stat,
		now:       now,
		pluginSrc: dirPattern(site.Roots.PluginsDir),
		themeSrc:  dirPattern(site.Roots.ThemesDir),
		assets:    make(map[string]*Asset),
	}
	if u, err := url.Parse(site.URL); err == nil && u.Host != "" {
		m.siteURL = u
	}
	return m
}

func dirPattern(dir string) *regexp.Regexp {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return nil
	}
	return regexp.MustCompile(`/` + regexp.QuoteMeta(dir) + `/([^/]+)/`)
}

// captureEnqueued tracks queued handles, scripts before styles.
func (m *assetMonitor) captureEnqueued(scripts, styles AssetQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, handle := range scripts.Queue {
		m.track(handle, AssetJS, scripts.Registered)
	}
	for _, handle := range styles.Queue {
		m.track(handle, AssetCSS, styles.Registered)
	}
}

func (m *assetMonitor) track(handle string, typ AssetType, registered map[string]RegisteredAsset) {
	if _, ok := m.assets[handle]; ok {
		return
	}

	m.order++
	a := &Asset{
		Handle:     handle,
		Type:       typ,
		Source:     SourceCore,
		SourceName: m.site.CoreName,
		LoadOrder:  m.order,
		Timestamp:  m.now(),
	}

	if reg, ok := registered[handle]; ok {
		a.Src = reg.Src
		a.Version = reg.Version
		a.Dependencies = append([]string(nil), reg.Deps...)
		if typ == AssetJS {
			a.InFooter = reg.InFooter
		}
		a.Source, a.SourceName = m.classifySource(reg.Src)
		a.Size = m.sizeOf(reg.Src)
	}

	m.assets[handle] = a
}

// srcResolved patches the src of a tracked handle. Nothing else changes.
func (m *assetMonitor) srcResolved(handle, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.assets[handle]; ok && a.Src != resolved {
		a.Src = resolved
	}
}

// captureInline adds "<handle>_inline" entries for non-empty inline content.
func (m *assetMonitor) captureInline(scripts, styles AssetQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inline(scripts, AssetJS)
	m.inline(styles, AssetCSS)
}

func (m *assetMonitor) inline(q AssetQueue, typ AssetType) {
	for _, handle := range inlineOrder(q) {
		content := q.Inline[handle]
		if content == "" {
			continue
		}
		key := handle + "_inline"
		if _, ok := m.assets[key]; ok {
			continue
		}

		source, name := SourceCore, m.site.CoreName
		if parent, ok := m.assets[handle]; ok {
			source, name = parent.Source, parent.SourceName
		}

		preview := truncate(content, MaxInlineContentLen)
		size := int64(len(content))
		m.order++
		m.assets[key] = &Asset{
			Handle:        key,
			Type:          typ,
			Source:        source,
			SourceName:    name,
			Size:          &size,
			LoadOrder:     m.order,
			InlineContent: &preview,
			Timestamp:     m.now(),
		}
	}
}

// inlineOrder returns inline handles in queue order, then the rest sorted.
func inlineOrder(q AssetQueue) []string {
	seen := make(map[string]bool, len(q.Inline))
	var handles []string
	for _, h := range q.Queue {
		if _, ok := q.Inline[h]; ok && !seen[h] {
			seen[h] = true
			handles = append(handles, h)
		}
	}
	var rest []string
	for h := range q.Inline {
		if !seen[h] {
			rest = append(rest, h)
		}
	}
	sort.Strings(rest)
	return append(handles, rest...)
}

// list returns the tracked assets in load order.
func (m *assetMonitor) list() []Asset {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoadOrder < out[j].LoadOrder })
	return out
}

// classifySource maps an asset URL to its source and display name.
func (m *assetMonitor) classifySource(src string) (AssetSource, string) {
	if src == "" {
		return SourceCore, m.site.CoreName
	}
	clean := stripOrigin(src)

	if m.pluginSrc != nil {
		if match := m.pluginSrc.FindStringSubmatch(clean); match != nil {
			dir := match[1]
			if name, ok := m.names.pluginName(dir); ok {
				return SourcePlugin, name
			}
			return SourcePlugin, TitleCase(dir)
		}
	}
	if m.themeSrc != nil {
		if match := m.themeSrc.FindStringSubmatch(clean); match != nil {
			dir := match[1]
			if name, ok := m.names.themeName(dir); ok {
				return SourceTheme, name
			}
			return SourceTheme, TitleCase(dir)
		}
	}

	return SourceCore, m.site.CoreName
}

// sizeOf stats same-origin and root-relative assets on the code filesystem.
// Cross-origin and missing files have no size.
func (m *assetMonitor) sizeOf(src string) *int64 {
	if src == "" || m.stat == nil {
		return nil
	}

	local, ok := m.localPath(src)
	if !ok {
		return nil
	}

	info, err := m.stat(local)
	if err != nil || info.IsDir() {
		return nil
	}
	size := info.Size()
	return &size
}

func (m *assetMonitor) localPath(src string) (string, bool) {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "//") {
		u, err := url.Parse(src)
		if err != nil || m.siteURL == nil || !strings.EqualFold(u.Host, m.siteURL.Host) {
			return "", false
		}
		p := u.Path
		if base := strings.TrimRight(m.siteURL.Path, "/"); base != "" {
			if !strings.HasPrefix(p, base+"/") {
				return "", false
			}
			p = p[len(base):]
		}
		src = p
	}

	p := cleanPath(src)
	if p == "" || p == "." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

// stripOrigin drops the query string and the scheme://host prefix.
func stripOrigin(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	for _, scheme := range []string{"http://", "https://", "//"} {
		if strings.HasPrefix(src, scheme) {
			rest := src[len(scheme):]
			if i := strings.Index(rest, "/"); i >= 0 {
				return rest[i:]
			}
			return "/"
		}
	}
	return src
}
