package pulse

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPageType is stored when the host never sets a page type.
const DefaultPageType = "Unknown"

// Session holds the measurements of one profiled request.
//
// All methods are safe on a nil *Session, which stands for an unprofiled request.
type Session struct {
	settings Settings
	site     Site
	store    Store
	cache    FallbackCache
	metrics  *Metrics
	logger   zerolog.Logger
	memory   *memoryWindow
	now      func() time.Time

	start       time.Time
	startMemory uint64

	requestURI  string
	userAgent   string
	method      string
	requestType RequestType

	codeFS      fs.FS
	interceptor *Interceptor
	names       *nameResolver
	active      activeSet
	queries     *queryMonitor
	assets      *assetMonitor

	mu             sync.Mutex
	release        func()
	plugins        map[string]PluginTiming
	pluginMemStart map[string]uint64
	checkpoints    []Checkpoint
	pageType       string

	flushOnce sync.Once
	report    FlushReport
}

type sessionDeps struct {
	settings Settings
	site     Site
	codeFS   fs.FS
	store    Store
	cache    FallbackCache
	metrics  *Metrics
	logger   zerolog.Logger
	memory   MemorySampler
	now      func() time.Time
}

func newSession(deps sessionDeps, rc RequestContext) *Session {
	if deps.now == nil {
		deps.now = time.Now
	}

	s := &Session{
		settings:       deps.settings,
		site:           deps.site,
		store:          deps.store,
		cache:          deps.cache,
		metrics:        deps.metrics,
		logger:         deps.logger,
		memory:         newMemoryWindow(deps.memory),
		now:            deps.now,
		requestURI:     rc.Path,
		userAgent:      rc.UserAgent,
		method:         rc.Method,
		requestType:    CategorizeRequest(rc.Path, deps.site),
		codeFS:         deps.codeFS,
		active:         newActiveSet(deps.site.ActivePlugins, deps.site.Roots.CodeExt),
		plugins:        make(map[string]PluginTiming),
		pluginMemStart: make(map[string]uint64),
		pageType:       DefaultPageType,
	}
	if s.method == "" {
		s.method = "GET"
	}
	s.start = s.now()
	s.startMemory = s.memory.Current()

	var stat func(string) (fs.FileInfo, error)
	var open func(string) (fs.File, error)
	if deps.codeFS != nil {
		s.interceptor = newInterceptor(deps.codeFS, deps.site.Roots, s.memory, deps.now, s)
		open = s.interceptor.nativeOpen
		stat = s.interceptor.Stat
	}
	s.names = newNameResolver(deps.site.Roots, open)
	s.queries = newQueryMonitor(deps.settings, s.now)
	s.assets = newAssetMonitor(deps.site, s.names, stat, s.now)

	return s
}

// Install activates file interception for this request. Failures are logged
// and profiling continues without plugin timing.
func (s *Session) Install() error {
	if s == nil {
		return nil
	}
	release, err := s.interceptor.Install()
	if err != nil {
		e := s.logger.Warn()
		if errors.Is(err, ErrInterceptionUnavailable) {
			e = s.logger.Debug()
		}
		e.Err(err).Str("uri", s.requestURI).Msg("Plugin load timing disabled for request")
		return err
	}
	s.mu.Lock()
	s.release = release
	s.mu.Unlock()
	return nil
}

// Release deactivates file interception. Safe to call more than once.
func (s *Session) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	release := s.release
	s.release = nil
	s.mu.Unlock()
	if release != nil {
		release()
	}
}

// FS returns the instrumented code filesystem, or nil when none is configured.
func (s *Session) FS() fs.FS {
	if s == nil || s.interceptor == nil {
		return nil
	}
	return s.interceptor
}

// Interceptor returns the session's load interceptor, or nil.
func (s *Session) Interceptor() *Interceptor {
	if s == nil {
		return nil
	}
	return s.interceptor
}

// Settings returns the settings snapshot taken when the request began.
func (s *Session) Settings() Settings {
	if s == nil {
		return Settings{}
	}
	return s.settings
}

// recordLoad attributes a timed file load to its owner.
func (s *Session) recordLoad(name string, elapsedMs float64, _ uint64) {
	owner := ResolveOwner(name, s.site.Roots)
	if owner.Kind == OwnerNone || !s.active.isActive(owner) {
		return
	}

	display := s.names.ownerName(owner, name)
	current := s.memory.Current()

	s.mu.Lock()
	pt, seen := s.plugins[display]
	if !seen {
		pt = PluginTiming{Name: display, File: name}
		s.pluginMemStart[display] = current
	}
	pt.LoadTime += elapsedMs
	pt.FilesLoaded++
	pt.MemoryUsage = subFloor(current, s.pluginMemStart[display])
	s.plugins[display] = pt
	s.mu.Unlock()

	s.metrics.fileTracked()
}

// Plugins returns a copy of the per-plugin timings recorded so far.
func (s *Session) Plugins() map[string]PluginTiming {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PluginTiming, len(s.plugins))
	for k, v := range s.plugins {
		out[k] = v
	}
	return out
}

// Checkpoint records a lifecycle marker and mirrors it into the fallback cache.
func (s *Session) Checkpoint(ctx context.Context, phase string) {
	if s == nil {
		return
	}
	now := s.now()
	current := s.memory.Current()
	cp := Checkpoint{
		Phase:      phase,
		Time:       now,
		Elapsed:    float64(now.Sub(s.start)) / float64(time.Millisecond),
		Memory:     current,
		MemoryUsed: int64(current) - int64(s.startMemory), //nolint:gosec // process memory fits in int64
	}

	s.mu.Lock()
	s.checkpoints = append(s.checkpoints, cp)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.PutCheckpoint(ctx, cp, s.settings.CheckpointTTL); err != nil {
			s.logger.Debug().Err(err).Str("phase", phase).Msg("Failed to cache checkpoint")
		}
	}
}

// Checkpoints returns the checkpoints recorded so far.
func (s *Session) Checkpoints() []Checkpoint {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Checkpoint(nil), s.checkpoints...)
}

// SetPageType sets the free-form page type stored with the profile.
func (s *Session) SetPageType(pageType string) {
	if s == nil || pageType == "" {
		return
	}
	s.mu.Lock()
	s.pageType = pageType
	s.mu.Unlock()
}

// OnQueryStart counts a query and returns it unchanged.
func (s *Session) OnQueryStart(sql string) string {
	if s == nil {
		return sql
	}
	return s.queries.onQueryStart(sql)
}

// RecordQuery adds a finished query to the query log.
func (s *Session) RecordQuery(rec QueryRecord) {
	if s == nil {
		return
	}
	s.queries.record(rec)
}

// QueryCount returns the number of queries seen so far.
func (s *Session) QueryCount() int {
	if s == nil {
		return 0
	}
	return s.queries.queryCount()
}

// FinalizeQueries extracts slow queries from the query log. Only the first call does work.
func (s *Session) FinalizeQueries() []SlowQuery {
	if s == nil {
		return nil
	}
	return s.queries.finalize(s.requestURI)
}

// CaptureEnqueued tracks every queued asset not seen before.
func (s *Session) CaptureEnqueued(scripts, styles AssetQueue) {
	if s == nil {
		return
	}
	s.assets.captureEnqueued(scripts, styles)
}

// OnAssetSrcResolved patches the src of an already tracked asset.
func (s *Session) OnAssetSrcResolved(handle, resolvedURL string) {
	if s == nil {
		return
	}
	s.assets.srcResolved(handle, resolvedURL)
}

// CaptureInlineContent tracks inline scripts and styles.
func (s *Session) CaptureInlineContent(scripts, styles AssetQueue) {
	if s == nil {
		return
	}
	s.assets.captureInline(scripts, styles)
}

// Assets returns the tracked assets in load order.
func (s *Session) Assets() []Asset {
	if s == nil {
		return nil
	}
	return s.assets.list()
}

// buildProfile assembles the immutable profile bundle at flush time.
func (s *Session) buildProfile() *Profile {
	end := s.now()
	s.memory.Current()
	slow := s.FinalizeQueries()

	s.mu.Lock()
	plugins := make(map[string]PluginTiming, len(s.plugins))
	for k, v := range s.plugins {
		plugins[k] = v
	}
	checkpoints := append([]Checkpoint(nil), s.checkpoints...)
	pageType := s.pageType
	s.mu.Unlock()

	sort.SliceStable(checkpoints, func(i, j int) bool { return checkpoints[i].Time.Before(checkpoints[j].Time) })

	return &Profile{
		Timestamp:   end,
		TotalTime:   float64(end.Sub(s.start)) / float64(time.Millisecond),
		TotalMemory: s.memory.Peak(),
		SampleRate:  ClampSampleRate(s.settings.SampleRate),
		RequestURI:  s.requestURI,
		UserAgent:   s.userAgent,
		RequestType: s.requestType,
		PageType:    pageType,
		Method:      s.method,
		QueryCount:  s.queries.queryCount(),
		Plugins:     plugins,
		Checkpoints: checkpoints,
		SlowQueries: append([]SlowQuery(nil), slow...),
		Assets:      s.assets.list(),
	}
}
