package pulse

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time

	// step is added after every reading.
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeMemory struct {
	mu      sync.Mutex
	current uint64
}

func (m *fakeMemory) Current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *fakeMemory) Set(v uint64) {
	m.mu.Lock()
	m.current = v
	m.mu.Unlock()
}

type fakeStore struct {
	mu          sync.Mutex
	profiles    []*Profile
	queries     map[string][]SlowQuery
	assets      map[string][]Asset
	profileErr  error
	failAssets  map[string]bool
	panicOnSave bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		queries:    make(map[string][]SlowQuery),
		assets:     make(map[string][]Asset),
		failAssets: make(map[string]bool),
	}
}

func (s *fakeStore) InsertProfile(_ context.Context, p *Profile) (string, error) {
	if s.panicOnSave {
		panic("store exploded")
	}
	if s.profileErr != nil {
		return "", s.profileErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p)
	return "profile-1", nil
}

func (s *fakeStore) InsertSlowQueries(_ context.Context, id string, queries []SlowQuery) BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res BatchResult
	for i, q := range queries {
		s.queries[id] = append(s.queries[id], q)
		res.Add(string(rune('a'+i)), nil)
	}
	return res
}

func (s *fakeStore) InsertAssets(_ context.Context, id string, assets []Asset) BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res BatchResult
	for _, a := range assets {
		if s.failAssets[a.Handle] {
			res.Add(a.Handle, errors.New("constraint violation"))
			continue
		}
		s.assets[id] = append(s.assets[id], a)
		res.Add(a.Handle, nil)
	}
	return res
}

type fakeCache struct {
	mu          sync.Mutex
	latest      *Profile
	latestTTL   time.Duration
	checkpoints []Checkpoint
}

func (c *fakeCache) PutLatest(_ context.Context, p *Profile, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = p
	c.latestTTL = ttl
	return nil
}

func (c *fakeCache) PutCheckpoint(_ context.Context, cp Checkpoint, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkpoints = append(c.checkpoints, cp)
	return nil
}

// testSite is a stock layout with two active plugins and an active child theme.
func testSite() Site {
	site := DefaultSite()
	site.URL = "https://example.com"
	site.Roots.Template = "parent"
	site.Roots.Stylesheet = "child"
	site.ActivePlugins = []string{"akismet/akismet.php", "hello.php", "seo/index.php"}
	return site
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"wp-content/plugins/akismet/akismet.php":       {Data: []byte("<?php\n/*\nPlugin Name: Akismet Anti-Spam\nVersion: 5.0\n*/\n")},
		"wp-content/plugins/akismet/class.akismet.php": {Data: []byte("<?php class Akismet {}")},
		"wp-content/plugins/akismet/akismet.css":       {Data: []byte("body{}")},
		"wp-content/plugins/seo/index.php":             {Data: []byte("<?php // no header")},
		"wp-content/plugins/seo/lib/util.php":          {Data: []byte("<?php")},
		"wp-content/plugins/inactive/inactive.php":     {Data: []byte("<?php\n/* Plugin Name: Inactive */")},
		"wp-content/plugins/hello.php":                 {Data: []byte("<?php\n/* Plugin Name: Hello Dolly */")},
		"wp-content/themes/child/style.css":            {Data: []byte("/*\nTheme Name: Child Theme\n*/")},
		"wp-content/themes/child/functions.php":        {Data: []byte("<?php")},
		"wp-content/themes/parent/functions.php":       {Data: []byte("<?php")},
		"wp-content/themes/other/functions.php":        {Data: []byte("<?php")},
		"wp-content/mu-plugins/loader.php":             {Data: []byte("<?php")},
		"wp-includes/load.php":                         {Data: []byte("<?php")},
		"wp-includes/js/jquery.js":                     {Data: []byte("jQuery=function(){}")},
		"wp-config.php":                                {Data: []byte("<?php")},
	}
}

type sessionOption func(*sessionDeps)

func newTestSession(clock *fakeClock, mem *fakeMemory, fsys fs.FS, opts ...sessionOption) *Session {
	deps := sessionDeps{
		settings: DefaultSettings().Normalize(),
		site:     testSite(),
		codeFS:   fsys,
		memory:   mem,
		now:      clock.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return newSession(deps, RequestContext{Path: "/blog/", Method: "GET", UserAgent: "test"})
}
