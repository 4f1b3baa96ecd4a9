package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/pulse/internal/fallback"
	"github.com/coral-mesh/pulse/internal/testutil"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

func TestServer_WithReportingStore(t *testing.T) {
	db := testutil.NewDatabase(t, "")
	now := time.Now()
	for i := 0; i < 3; i++ {
		testutil.InsertProfile(t, db, testutil.Profile("/p/", now.Add(-time.Duration(i)*time.Minute), float64(40+i*10)))
	}

	cache, err := fallback.Open(fallback.Options{InMemory: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	s, err := New(Config{Reader: db, Cache: cache, Logger: testutil.LoggerWithOutput(t)})
	require.NoError(t, err)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/summary?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[SummaryResponse](t, rec)
	assert.Equal(t, 2, summary.Aggregate.TotalProfiles)
	require.NotEmpty(t, summary.Aggregate.Plugins)
	assert.Equal(t, "WooCommerce", summary.Aggregate.Plugins[0].Name)
	assert.InDelta(t, 45, summary.Aggregate.Plugins[0].AvgTime, 1e-9)
	assert.Equal(t, int64(3), summary.Statistics.TotalProfiles)

	rec = do(t, h, http.MethodGet, "/api/v1/profiles/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[LatestResponse](t, rec)
	assert.Equal(t, "store", latest.Source)

	rec = do(t, h, http.MethodDelete, "/api/v1/data")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/profiles/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]pulse.Profile](t, rec))

	rec = do(t, h, http.MethodGet, "/api/v1/profiles/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
