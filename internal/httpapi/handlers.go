package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

const maxListLimit = 1000

// SummaryResponse is the body of GET /api/v1/summary.
type SummaryResponse struct {
	Aggregate  pulse.AggregateView  `json:"aggregate"`
	Insights   []pulse.Insight      `json:"insights"`
	Statistics *database.Statistics `json:"statistics"`
}

// LatestResponse is the body of GET /api/v1/profiles/latest.
type LatestResponse struct {
	Profile *pulse.Profile `json:"profile"`
	// Source is "store" or "cache".
	Source string `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.queryContext(r)
	defer cancel()
	if err := s.cfg.Reader.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", s.cfg.AggregateLimit)
	if !ok {
		return
	}
	ctx, cancel := s.queryContext(r)
	defer cancel()

	view, err := s.cfg.Reader.Aggregated(ctx, limit, s.cfg.SampleRate())
	if err != nil {
		s.fail(w, "aggregate profiles", err)
		return
	}
	stats, err := s.cfg.Reader.Statistics(ctx)
	if err != nil {
		s.fail(w, "load statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		Aggregate:  view,
		Insights:   pulse.Insights(view),
		Statistics: stats,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", database.DefaultRecentLimit)
	if !ok {
		return
	}
	ctx, cancel := s.queryContext(r)
	defer cancel()

	profiles, err := s.cfg.Reader.RecentProfiles(ctx, limit)
	if err != nil {
		s.fail(w, "load recent profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.queryContext(r)
	defer cancel()

	p, err := s.cfg.Reader.LatestProfile(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Store unavailable, reading latest profile from cache")
	}
	if p != nil {
		writeJSON(w, http.StatusOK, LatestResponse{Profile: p, Source: "store"})
		return
	}

	if s.cfg.Cache != nil {
		cached, cacheErr := s.cfg.Cache.Latest(ctx)
		if cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Msg("Failed to read latest profile from cache")
		}
		if cached != nil {
			writeJSON(w, http.StatusOK, LatestResponse{Profile: cached, Source: "cache"})
			return
		}
	}
	if err != nil {
		s.fail(w, "load latest profile", err)
		return
	}
	writeError(w, http.StatusNotFound, "no profiles recorded yet")
}

func (s *Server) handleProfileAssets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.queryContext(r)
	defer cancel()

	assets, err := s.cfg.Reader.ProfileAssets(ctx, r.PathValue("id"))
	if err != nil {
		s.fail(w, "load profile assets", err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleSlowQueries(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", database.DefaultSlowQueryLimit)
	if !ok {
		return
	}
	ctx, cancel := s.queryContext(r)
	defer cancel()

	queries, err := s.cfg.Reader.SlowQueries(ctx, limit)
	if err != nil {
		s.fail(w, "load slow queries", err)
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

func (s *Server) handleQueryStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.queryContext(r)
	defer cancel()

	stats, err := s.cfg.Reader.SlowQueryStats(ctx)
	if err != nil {
		s.fail(w, "load slow query stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAssetSummary(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", database.DefaultAssetWindowDays)
	if !ok {
		return
	}
	ctx, cancel := s.queryContext(r)
	defer cancel()

	summary, err := s.cfg.Reader.AggregatedAssets(ctx, days)
	if err != nil {
		s.fail(w, "load asset summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", s.cfg.AggregateLimit)
	if !ok {
		return
	}
	ctx, cancel := s.queryContext(r)
	defer cancel()

	view, err := s.cfg.Reader.Aggregated(ctx, limit, s.cfg.SampleRate())
	if err != nil {
		s.fail(w, "aggregate profiles", err)
		return
	}

	name := fmt.Sprintf("pulse-export-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(pulse.ExportRows(view)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write CSV export")
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.queryContext(r)
	defer cancel()

	if err := s.cfg.Reader.ClearAll(ctx); err != nil {
		s.fail(w, "clear data", err)
		return
	}
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to clear fallback cache")
		}
	}
	s.logger.Info().Msg("All profiling data cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.logger.Error().Err(err).Msgf("Failed to %s", what)
	writeError(w, status, "failed to "+what)
}

// intParam reads a positive integer query parameter. It writes a 400 and
// returns false when the value is malformed.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return min(n, maxListLimit), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
