package pulse

import (
	"bufio"
	"bytes"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// headerScanBytes bounds how much of a file is scanned for a header field.
const headerScanBytes = 8 << 10

var headerCleanup = regexp.MustCompile(`\s*(?:\*/|\?>).*$`)

// nameResolver turns owners into display names by reading plugin and theme headers.
// It is per-session and caches every lookup.
type nameResolver struct {
	roots Roots
	open  func(name string) (fs.File, error)

	mu    sync.Mutex
	cache map[string]string
}

func newNameResolver(roots Roots, open func(name string) (fs.File, error)) *nameResolver {
	return &nameResolver{
		roots: roots,
		open:  open,
		cache: make(map[string]string),
	}
}

// ownerName returns the display name used as the PluginTiming key.
func (n *nameResolver) ownerName(o Owner, file string) string {
	ext := n.codeExt()
	switch o.Kind {
	case OwnerPlugin:
		if o.SingleFile {
			return TitleCase(strings.TrimSuffix(o.Slug, ext))
		}
		if name, ok := n.pluginName(o.Slug); ok {
			return name
		}
		return TitleCase(o.Slug)
	case OwnerTheme:
		if name, ok := n.themeName(o.Slug); ok {
			return name
		}
		return "Theme"
	default:
		return strings.TrimSuffix(path.Base(file), ext)
	}
}

// pluginName reads the "Plugin Name" header from the first existing main-file candidate.
func (n *nameResolver) pluginName(slug string) (string, bool) {
	return n.cached("plugin:"+slug, func() string {
		for _, candidate := range MainFileCandidates(slug, n.codeExt()) {
			head, ok := n.readHead(path.Join(n.roots.PluginsDir, candidate))
			if !ok {
				continue
			}
			return parseHeader(head, "Plugin Name")
		}
		return ""
	})
}

// themeName reads the "Theme Name" header from the theme's style.css.
func (n *nameResolver) themeName(slug string) (string, bool) {
	return n.cached("theme:"+slug, func() string {
		head, ok := n.readHead(path.Join(n.roots.ThemesDir, slug, "style.css"))
		if !ok {
			return ""
		}
		return parseHeader(head, "Theme Name")
	})
}

func (n *nameResolver) cached(key string, load func() string) (string, bool) {
	n.mu.Lock()
	name, hit := n.cache[key]
	n.mu.Unlock()
	if !hit {
		name = load()
		n.mu.Lock()
		n.cache[key] = name
		n.mu.Unlock()
	}
	return name, name != ""
}

func (n *nameResolver) readHead(name string) ([]byte, bool) {
	if n.open == nil {
		return nil, false
	}
	f, err := n.open(name)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	head, err := io.ReadAll(io.LimitReader(f, headerScanBytes))
	if err != nil {
		return nil, false
	}
	return head, true
}

func (n *nameResolver) codeExt() string {
	if n.roots.CodeExt == "" {
		return ".php"
	}
	return n.roots.CodeExt
}

// parseHeader extracts "Field: value" from a comment header block.
func parseHeader(data []byte, field string) string {
	prefix := strings.ToLower(field) + ":"
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimLeft(scanner.Text(), " \t/*#@")
		if !strings.HasPrefix(strings.ToLower(line), prefix) {
			continue
		}
		value := strings.TrimSpace(line[len(prefix):])
		value = headerCleanup.ReplaceAllString(value, "")
		return strings.TrimSpace(value)
	}
	return ""
}

// TitleCase turns a slug like "my_cool-plugin" into "My Cool Plugin".
// Only the first letter of each word is changed.
func TitleCase(slug string) string {
	s := strings.NewReplacer("-", " ", "_", " ").Replace(slug)

	var b strings.Builder
	b.Grow(len(s))
	startOfWord := true
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if startOfWord {
			r = unicode.ToUpper(r)
		}
		startOfWord = unicode.IsSpace(r)
		b.WriteRune(r)
	}
	return b.String()
}
