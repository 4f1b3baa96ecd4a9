package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

type fakeReader struct {
	profiles  []pulse.Profile
	queries   []pulse.SlowQuery
	err       error
	lastLimit int
	lastDays  int
}

func (f *fakeReader) RecentProfiles(_ context.Context, limit int) ([]pulse.Profile, error) {
	f.lastLimit = limit
	return f.profiles, f.err
}

func (f *fakeReader) AggregatedAssets(_ context.Context, days int) (*database.AssetSummary, error) {
	f.lastDays = days
	if f.err != nil {
		return nil, f.err
	}
	return &database.AssetSummary{
		WindowDays:  days,
		TotalAssets: 4,
		AvgCSSCount: 1.5,
		AvgJSCount:  2,
		AvgSize:     4096,
		BySource: []database.AssetSourceStat{
			{Source: pulse.SourcePlugin, SourceName: "WooCommerce", Type: pulse.AssetJS, Count: 3, AvgSize: 5000},
		},
		TopAssets: []database.TopAsset{
			{Handle: "wc-cart-fragments", Type: pulse.AssetJS, Source: pulse.SourcePlugin, SourceName: "WooCommerce", AvgSize: 5000, Frequency: 3},
		},
	}, nil
}

func (f *fakeReader) SlowQueries(_ context.Context, limit int) ([]pulse.SlowQuery, error) {
	f.lastLimit = limit
	return f.queries, f.err
}

func (f *fakeReader) SlowQueryStats(context.Context) (*database.SlowQueryStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &database.SlowQueryStats{
		Total: 2, AvgTime: 150, MaxTime: 200, MinTime: 100,
		Frequent: []database.FrequentQuery{{Hash: "abc", Preview: "SELECT option_value FROM wp_options", Frequency: 2, AvgTime: 150, MaxTime: 200}},
	}, nil
}

func (f *fakeReader) Aggregated(_ context.Context, limit, rate int) (pulse.AggregateView, error) {
	f.lastLimit = limit
	if f.err != nil {
		return pulse.AggregateView{}, f.err
	}
	return pulse.Aggregate(f.profiles, rate), nil
}

func (f *fakeReader) Statistics(context.Context) (*database.Statistics, error) {
	if f.err != nil {
		return nil, f.err
	}
	oldest := time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)
	latest := oldest.Add(24 * time.Hour)
	return &database.Statistics{TotalProfiles: int64(len(f.profiles)), OldestProfile: &oldest, LatestProfile: &latest}, nil
}

func testProfiles() []pulse.Profile {
	return []pulse.Profile{{
		ID: "p1", Timestamp: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC), Method: "GET",
		RequestURI: "/shop/", RequestType: pulse.RequestTypePage, PageType: "Archive",
		TotalTime: 1500, TotalMemory: 150 << 20, QueryCount: 42,
		Plugins: map[string]pulse.PluginTiming{
			"woocommerce":  {Name: "WooCommerce", LoadTime: 220},
			"yoast":        {Name: "Yoast SEO", LoadTime: 90},
			"akismet":      {Name: "Akismet", LoadTime: 60},
			"contact-form": {Name: "Contact Form 7", LoadTime: 55},
			"hello-dolly":  {Name: "Hello Dolly", LoadTime: 1},
		},
	}}
}

func newTestServer(t *testing.T, reader Reader, cfg Config) *Server {
	t.Helper()
	if cfg.SampleRate == nil {
		cfg.SampleRate = func() int { return 10 }
	}
	s, err := New(reader, cfg, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestNew_RequiresReader(t *testing.T) {
	_, err := New(nil, Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestListToolNames(t *testing.T) {
	s := newTestServer(t, &fakeReader{}, Config{})
	assert.Equal(t, []string{
		ToolAssetsSummary, ToolInsights, ToolRecentRequests, ToolSlowQueries, ToolSummary,
	}, s.ListToolNames())

	limited := newTestServer(t, &fakeReader{}, Config{EnabledTools: []string{ToolSummary}})
	assert.Equal(t, []string{ToolSummary}, limited.ListToolNames())

	_, err := limited.ExecuteTool(context.Background(), ToolInsights, "")
	assert.ErrorContains(t, err, "not found or not enabled")
}

func TestSummaryTool(t *testing.T) {
	reader := &fakeReader{profiles: testProfiles()}
	s := newTestServer(t, reader, Config{AggregateLimit: 50})

	out, err := s.ExecuteTool(context.Background(), ToolSummary, "")
	require.NoError(t, err)
	assert.Equal(t, 50, reader.lastLimit)
	assert.Contains(t, out, "Profiles stored: 1 (2026-06-14T00:00:00Z to 2026-06-15T00:00:00Z)")
	assert.Contains(t, out, "sample rate 10%, confidence Very Low")
	assert.Contains(t, out, "1. WooCommerce: 220.00ms")

	_, err = s.ExecuteTool(context.Background(), ToolSummary, `{"limit": 5}`)
	require.NoError(t, err)
	assert.Equal(t, 5, reader.lastLimit)

	empty := newTestServer(t, &fakeReader{}, Config{})
	out, err = empty.ExecuteTool(context.Background(), ToolSummary, "{}")
	require.NoError(t, err)
	assert.Contains(t, out, "No plugin timings recorded yet.")
}

func TestRecentRequestsTool(t *testing.T) {
	reader := &fakeReader{profiles: testProfiles()}
	s := newTestServer(t, reader, Config{})

	out, err := s.ExecuteTool(context.Background(), ToolRecentRequests, `{"limit": 0}`)
	require.NoError(t, err)
	assert.Equal(t, database.DefaultRecentLimit, reader.lastLimit, "non-positive limits use the default")
	assert.Contains(t, out, "GET /shop/ [page, Archive]")
	assert.Contains(t, out, "42 queries")
	assert.Contains(t, out, "slowest: WooCommerce 220.00ms, Yoast SEO 90.00ms, Akismet 60.00ms")

	out, err = newTestServer(t, &fakeReader{}, Config{}).ExecuteTool(context.Background(), ToolRecentRequests, "")
	require.NoError(t, err)
	assert.Equal(t, "No requests have been profiled yet.", out)
}

func TestSlowQueriesTool(t *testing.T) {
	reader := &fakeReader{queries: []pulse.SlowQuery{{
		SQL:           "SELECT   option_value\n FROM wp_options WHERE autoload = 'yes'",
		ExecutionTime: 200, Caller: "WooCommerce", RequestURI: "/shop/",
	}}}
	s := newTestServer(t, reader, Config{})

	out, err := s.ExecuteTool(context.Background(), ToolSlowQueries, "")
	require.NoError(t, err)
	assert.Contains(t, out, "1. 200.00ms SELECT option_value FROM wp_options WHERE autoload = 'yes'")
	assert.Contains(t, out, "caller: WooCommerce")
	assert.NotContains(t, out, "Most frequent")

	out, err = s.ExecuteTool(context.Background(), ToolSlowQueries, `{"include_stats": true, "limit": 3}`)
	require.NoError(t, err)
	assert.Equal(t, 3, reader.lastLimit)
	assert.Contains(t, out, "Total 2, avg 150.00ms, max 200.00ms, min 100.00ms")
	assert.Contains(t, out, "2x avg 150.00ms")
}

func TestAssetsSummaryTool(t *testing.T) {
	reader := &fakeReader{}
	s := newTestServer(t, reader, Config{})

	out, err := s.ExecuteTool(context.Background(), ToolAssetsSummary, `{"days": 14}`)
	require.NoError(t, err)
	assert.Equal(t, 14, reader.lastDays)
	assert.Contains(t, out, "last 14 days: 4 total")
	assert.Contains(t, out, "plugin WooCommerce (js): 3 assets")
	assert.Contains(t, out, "1. wc-cart-fragments")
}

func TestInsightsTool(t *testing.T) {
	s := newTestServer(t, &fakeReader{profiles: testProfiles()}, Config{})

	out, err := s.ExecuteTool(context.Background(), ToolInsights, "")
	require.NoError(t, err)
	assert.Contains(t, out, "[INFO] Collecting more data")
	assert.Contains(t, out, "[WARNING] Slow plugins detected: WooCommerce, Yoast SEO, Akismet and 1 more")
	assert.Contains(t, out, "[ERROR] Average total load time is high")
	assert.Contains(t, out, "[WARNING] High memory usage: 150 MB")
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t, &fakeReader{err: errors.New("database is locked")}, Config{})
	for _, name := range s.ListToolNames() {
		_, err := s.ExecuteTool(context.Background(), name, "")
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "database is locked", name)
	}

	_, err := s.ExecuteTool(context.Background(), ToolSummary, "{not json")
	assert.ErrorContains(t, err, "failed to parse arguments")

	_, err = s.ExecuteTool(context.Background(), ToolSummary, `{"limit": "ten"}`)
	assert.ErrorContains(t, err, "failed to parse arguments")
}

func TestToolsListOverProtocol(t *testing.T) {
	s := newTestServer(t, &fakeReader{}, Config{})
	resp := s.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range s.ListToolNames() {
		assert.Contains(t, string(raw), `"name":"`+name+`"`)
	}
}

func TestAuditToolCall(t *testing.T) {
	var buf testWriter
	s, err := New(&fakeReader{}, Config{AuditEnabled: true}, zerolog.New(&buf))
	require.NoError(t, err)

	_, err = s.ExecuteTool(context.Background(), ToolAssetsSummary, `{"days": 3}`)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"tool":"pulse_assets_summary"`)
	assert.Contains(t, buf.String(), `"args":{"days":3}`)
}

type testWriter struct{ data []byte }

func (w *testWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *testWriter) String() string { return string(w.data) }
