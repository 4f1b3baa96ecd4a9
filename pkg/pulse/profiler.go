package pulse

import (
	"context"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// PhaseRequestStart is the checkpoint recorded by Middleware when a profiled request begins.
const PhaseRequestStart = "request_start"

// Config contains profiler configuration options.
type Config struct {
	// Settings are the initial profiling knobs. They are normalized on use.
	Settings Settings

	// Site describes the host layout.
	Site Site

	// CodeFS is the native filesystem code files are loaded from (optional).
	// Without it plugin load timing is skipped.
	CodeFS fs.FS

	// Store receives flushed profiles (optional).
	Store Store

	// Cache receives checkpoints and profiles the store could not take (optional).
	Cache FallbackCache

	// Memory samples process memory (optional, defaults to the process RSS sampler).
	Memory MemorySampler

	// Metrics are updated when set (optional).
	Metrics *Metrics

	// Logger is the logger instance (optional, defaults to zerolog.Nop()).
	Logger zerolog.Logger

	// Classify overrides ClassifyRequest in Middleware (optional).
	Classify func(r *http.Request, site Site) RequestContext

	// Clock overrides time.Now (optional).
	Clock func() time.Time

	SamplerOptions []SamplerOption
}

// Profiler decides which requests to profile and creates their sessions.
// It is safe for concurrent use.
type Profiler struct {
	site     Site
	codeFS   fs.FS
	store    Store
	cache    FallbackCache
	memory   MemorySampler
	metrics  *Metrics
	logger   zerolog.Logger
	classify func(*http.Request, Site) RequestContext
	now      func() time.Time
	opts     []SamplerOption

	state atomic.Pointer[profilerState]
}

type profilerState struct {
	settings Settings
	sampler  *Sampler
}

// New creates a profiler.
func New(cfg Config) *Profiler {
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "pulse").Logger()

	site := cfg.Site
	if site.CoreName == "" {
		site.CoreName = DefaultSite().CoreName
	}

	p := &Profiler{
		site:     site,
		codeFS:   cfg.CodeFS,
		store:    cfg.Store,
		cache:    cfg.Cache,
		memory:   cfg.Memory,
		metrics:  cfg.Metrics,
		logger:   logger,
		classify: cfg.Classify,
		now:      cfg.Clock,
		opts:     append([]SamplerOption{WithSamplerLogger(logger)}, cfg.SamplerOptions...),
	}
	if p.memory == nil {
		p.memory = NewMemorySampler("process")
	}
	if p.classify == nil {
		p.classify = ClassifyRequest
	}
	if p.now == nil {
		p.now = time.Now
	}

	p.UpdateSettings(cfg.Settings)

	logger.Debug().
		Int("sample_rate", p.Settings().SampleRate).
		Bool("code_fs", cfg.CodeFS != nil).
		Bool("store", cfg.Store != nil).
		Msg("Profiler initialized")

	return p
}

// UpdateSettings swaps in new settings and recompiles the sampler.
// Requests already in flight keep the settings they started with.
func (p *Profiler) UpdateSettings(s Settings) {
	s = s.Normalize()
	p.state.Store(&profilerState{
		settings: s,
		sampler:  NewSampler(p.site, s, p.opts...),
	})
}

// Settings returns the current settings.
func (p *Profiler) Settings() Settings {
	return p.state.Load().settings
}

// Site returns the site layout.
func (p *Profiler) Site() Site {
	return p.site
}

// Begin runs the sampling gate. It returns a nil session when the request is not profiled.
func (p *Profiler) Begin(rc RequestContext) (*Session, Decision) {
	st := p.state.Load()
	d := st.sampler.Decide(rc, st.settings)
	p.metrics.decision(d)
	if !d.Profile {
		return nil, d
	}

	s := newSession(sessionDeps{
		settings: st.settings,
		site:     p.site,
		codeFS:   p.codeFS,
		store:    p.store,
		cache:    p.cache,
		metrics:  p.metrics,
		logger:   p.logger.With().Str("request_uri", rc.Path).Logger(),
		memory:   p.memory,
		now:      p.now,
	}, rc)
	return s, d
}

// Middleware profiles sampled requests. The session is available to the
// handler through the request context and is flushed when the handler returns
// or panics.
func (p *Profiler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := p.Begin(p.classify(r, p.site))
		if s == nil {
			next.ServeHTTP(w, r)
			return
		}

		_ = s.Install() // failures are logged; the request is still profiled
		ctx := NewContext(r.Context(), s)
		s.Checkpoint(ctx, PhaseRequestStart)

		defer func() {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.FlushTimeout)
			defer cancel()
			s.Flush(flushCtx)
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
