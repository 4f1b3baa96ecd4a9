package pulse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoFallback is reported when a profile could not be stored and no fallback cache is configured.
var ErrNoFallback = errors.New("no fallback cache configured")

// ErrNoStore is the ProfileErr of a flush without a store.
var ErrNoStore = errors.New("no store configured")

// Flush persists the session once. Later calls return the first report.
// It never panics and never fails the host; problems are in the report.
func (s *Session) Flush(ctx context.Context) FlushReport {
	if s == nil {
		return FlushReport{}
	}
	s.flushOnce.Do(func() {
		s.report = s.flush(ctx)
		s.metrics.flush(s.report)
	})
	return s.report
}

func (s *Session) flush(ctx context.Context) FlushReport {
	s.Release()

	p := s.buildProfile()
	report := FlushReport{Profile: p}

	if s.store == nil {
		report.ProfileErr = ErrNoStore
	} else {
		report.ProfileErr = guard(func() error {
			id, err := s.store.InsertProfile(ctx, p)
			if err != nil {
				return err
			}
			report.ProfileID = id
			return nil
		})
	}

	if report.ProfileErr != nil {
		report.ProfileID = ""
		if s.store != nil {
			s.logger.Warn().Err(report.ProfileErr).Str("request_uri", p.RequestURI).Msg("Failed to store profile, using fallback cache")
		}
		s.fallback(ctx, p, &report)
		return report
	}

	p.ID = report.ProfileID
	for i := range p.SlowQueries {
		p.SlowQueries[i].ProfileID = p.ID
	}

	report.Queries = s.insertChildren("slow_query", len(p.SlowQueries), func() BatchResult {
		return s.store.InsertSlowQueries(ctx, p.ID, p.SlowQueries)
	})
	report.Assets = s.insertChildren("asset", len(p.Assets), func() BatchResult {
		return s.store.InsertAssets(ctx, p.ID, p.Assets)
	})

	s.logger.Debug().
		Str("profile_id", p.ID).
		Float64("total_time_ms", p.TotalTime).
		Int("plugins", len(p.Plugins)).
		Int("slow_queries", report.Queries.Succeeded()).
		Int("assets", report.Assets.Succeeded()).
		Msg("Profile stored")

	return report
}

// insertChildren runs a best-effort child insert, turning a panic into per-child failures.
func (s *Session) insertChildren(kind string, n int, insert func() BatchResult) BatchResult {
	if n == 0 {
		return BatchResult{}
	}

	var result BatchResult
	if err := guard(func() error {
		result = insert()
		return nil
	}); err != nil {
		result = BatchResult{}
		for i := 0; i < n; i++ {
			result.Add(strconv.Itoa(i), err)
		}
	}

	if failed := result.Failed(); len(failed) > 0 {
		s.logger.Warn().
			Str("kind", kind).
			Int("failed", len(failed)).
			Int("total", n).
			Err(failed[0].Err).
			Msg("Some child rows were not stored")
	}
	return result
}

func (s *Session) fallback(ctx context.Context, p *Profile, report *FlushReport) {
	report.Fallback = true
	if s.cache == nil {
		report.FallbackErr = ErrNoFallback
		return
	}
	report.FallbackErr = guard(func() error {
		return s.cache.PutLatest(ctx, p, s.settings.LatestProfileTTL)
	})
	if report.FallbackErr != nil {
		s.logger.Warn().Err(report.FallbackErr).Msg("Failed to write profile to fallback cache")
	}
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
