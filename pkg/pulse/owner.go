package pulse

import (
	"path"
	"strings"
)

// Roots is the directory layout used to decide which files are tracked and who owns them.
// All paths are slash-separated and relative to the code filesystem root.
type Roots struct {
	ContentDir   string
	PluginsDir   string
	MUPluginsDir string
	ThemesDir    string

	// Template and Stylesheet are the active parent and child theme directory names.
	Template   string
	Stylesheet string

	// CoreDirs are never tracked.
	CoreDirs []string

	// SkipFiles are base names that are never tracked.
	SkipFiles []string

	// CodeExt is the extension of loadable code files.
	CodeExt string
}

// DefaultRoots returns the stock directory layout.
func DefaultRoots() Roots {
	return Roots{
		ContentDir:   "wp-content",
		PluginsDir:   "wp-content/plugins",
		MUPluginsDir: "wp-content/mu-plugins",
		ThemesDir:    "wp-content/themes",
		CoreDirs:     []string{"wp-includes", "wp-admin"},
		SkipFiles:    []string{".maintenance", ".htaccess", "wp-config.php"},
		CodeExt:      ".php",
	}
}

// ThemeDirs returns the active theme directories, stylesheet first.
func (r Roots) ThemeDirs() []string {
	var dirs []string
	if r.Stylesheet != "" {
		dirs = append(dirs, path.Join(r.ThemesDir, r.Stylesheet))
	}
	if r.Template != "" && r.Template != r.Stylesheet {
		dirs = append(dirs, path.Join(r.ThemesDir, r.Template))
	}
	return dirs
}

// OwnerKind classifies who owns a loaded file.
type OwnerKind string

const (
	OwnerNone     OwnerKind = ""
	OwnerPlugin   OwnerKind = "plugin"
	OwnerTheme    OwnerKind = "theme"
	OwnerMUPlugin OwnerKind = "mu-plugin"
)

// Owner is the result of resolving a file path against Roots.
type Owner struct {
	Kind OwnerKind

	// Slug is the plugin or theme directory name, or the file name for
	// single-file plugins and MU plugins.
	Slug string

	// Rel is the path relative to the owning root (plugins dir, theme dir or MU dir).
	Rel string

	// SingleFile is set for plugins that live directly in the plugins dir.
	SingleFile bool
}

// ResolveOwner maps a path to its owner. Plugin roots win over theme roots,
// which win over the MU-plugin root.
func ResolveOwner(name string, roots Roots) Owner {
	p := cleanPath(name)

	if rel, ok := under(p, roots.PluginsDir); ok {
		parts := strings.SplitN(rel, "/", 2)
		if len(parts) == 1 {
			return Owner{Kind: OwnerPlugin, Slug: parts[0], Rel: rel, SingleFile: true}
		}
		return Owner{Kind: OwnerPlugin, Slug: parts[0], Rel: rel}
	}

	for _, dir := range roots.ThemeDirs() {
		if rel, ok := under(p, dir); ok {
			return Owner{Kind: OwnerTheme, Slug: path.Base(dir), Rel: rel}
		}
	}

	if rel, ok := under(p, roots.MUPluginsDir); ok {
		return Owner{Kind: OwnerMUPlugin, Slug: strings.SplitN(rel, "/", 2)[0], Rel: rel}
	}

	return Owner{Kind: OwnerNone}
}

// IsTrackable reports whether loading name should be timed.
func IsTrackable(name string, roots Roots) bool {
	p := cleanPath(name)
	if p == "" || p == "." {
		return false
	}

	base := path.Base(p)
	for _, skip := range roots.SkipFiles {
		if base == skip {
			return false
		}
	}

	for _, core := range roots.CoreDirs {
		if _, ok := under(p, core); ok {
			return false
		}
	}

	ext := roots.CodeExt
	if ext == "" {
		ext = ".php"
	}
	if !strings.HasSuffix(p, ext) {
		return false
	}

	return ResolveOwner(p, roots).Kind != OwnerNone
}

// MainFileCandidates lists the files that may carry a plugin's header, in lookup order.
func MainFileCandidates(slug, ext string) []string {
	if ext == "" {
		ext = ".php"
	}
	return []string{
		slug + "/" + slug + ext,
		slug + "/index" + ext,
		slug + "/main" + ext,
		slug + "/" + slug + "-main" + ext,
	}
}

// activeSet answers whether an owner is active on the site.
type activeSet struct {
	plugins map[string]bool
	ext     string
}

func newActiveSet(activePlugins []string, ext string) activeSet {
	set := make(map[string]bool, len(activePlugins))
	for _, p := range activePlugins {
		set[cleanPath(p)] = true
	}
	return activeSet{plugins: set, ext: ext}
}

func (a activeSet) isActive(o Owner) bool {
	switch o.Kind {
	case OwnerTheme, OwnerMUPlugin:
		// Only active theme dirs resolve to OwnerTheme.
		return true
	case OwnerPlugin:
		if o.SingleFile {
			return a.plugins[o.Slug]
		}
		for _, candidate := range MainFileCandidates(o.Slug, a.ext) {
			if a.plugins[candidate] {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// under reports whether p is inside dir and returns the remainder.
func under(p, dir string) (string, bool) {
	dir = cleanPath(dir)
	if dir == "" || dir == "." {
		return "", false
	}
	if !strings.HasPrefix(p, dir+"/") {
		return "", false
	}
	return p[len(dir)+1:], true
}

func cleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
