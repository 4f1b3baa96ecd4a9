package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

// NewDatabase opens a reporting store at path, or in a temporary directory
// when path is empty. It is closed when the test ends unless closed earlier.
func NewDatabase(t testing.TB, path string, opts ...database.Option) *database.Database {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "pulse.duckdb")
	}
	db, err := database.New(path, duckdb.OpenOptions{Threads: 1}, Logger(), opts...)
	if err != nil {
		t.Fatalf("open reporting store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Profile returns a page profile of uri with two plugins. The first plugin
// costs loadTime ms, the second a tenth of it.
func Profile(uri string, ts time.Time, loadTime float64) *pulse.Profile {
	return &pulse.Profile{
		Timestamp:   ts,
		TotalTime:   loadTime * 2,
		TotalMemory: 6 << 20,
		SampleRate:  pulse.DefaultSampleRate,
		RequestURI:  uri,
		UserAgent:   "testutil",
		RequestType: pulse.RequestTypePage,
		PageType:    "Single Page",
		Method:      "GET",
		QueryCount:  20,
		Plugins: map[string]pulse.PluginTiming{
			"WooCommerce":       {Name: "WooCommerce", LoadTime: loadTime, MemoryUsage: 2 << 20, FilesLoaded: 55},
			"Akismet Anti-Spam": {Name: "Akismet Anti-Spam", LoadTime: loadTime / 10, MemoryUsage: 4096, FilesLoaded: 3},
		},
	}
}

// InsertProfile stores p and fails the test on error.
func InsertProfile(t testing.TB, db *database.Database, p *pulse.Profile) string {
	t.Helper()
	id, err := db.InsertProfile(Context(t), p)
	if err != nil {
		t.Fatalf("insert profile %s: %v", p.RequestURI, err)
	}
	return id
}

// InsertChildren stores slow queries and assets for profileID and fails the
// test if any row is rejected.
func InsertChildren(t testing.TB, db *database.Database, profileID string, queries []pulse.SlowQuery, assets []pulse.Asset) {
	t.Helper()
	ctx := Context(t)
	for _, res := range []pulse.BatchResult{
		db.InsertSlowQueries(ctx, profileID, queries),
		db.InsertAssets(ctx, profileID, assets),
	} {
		if failed := res.Failed(); len(failed) > 0 {
			t.Fatalf("insert children: %v", fmt.Sprint(failed))
		}
	}
}
