package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

const (
	// DefaultRecentLimit is the size of the recent requests view.
	DefaultRecentLimit = 20
	// DefaultAggregateLimit is how many recent profiles feed the aggregate view.
	DefaultAggregateLimit = 100
)

// Statistics summarises the whole profiles table.
type Statistics struct {
	TotalProfiles int64      `json:"total_profiles"`
	AvgLoadTime   float64    `json:"avg_load_time"`
	AvgMemory     float64    `json:"avg_memory"`
	OldestProfile *time.Time `json:"oldest_profile,omitempty"`
	LatestProfile *time.Time `json:"latest_profile,omitempty"`
}

// InsertProfile stores the parent row of a flushed profile in one statement
// and returns the generated id. Children are not written here.
func (d *Database) InsertProfile(ctx context.Context, p *pulse.Profile) (string, error) {
	if p == nil {
		return "", errors.New("nil profile")
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = d.now()
	}

	row, err := newProfileRow(d.newID(), p)
	if err != nil {
		return "", err
	}
	if err := d.profiles.Insert(ctx, &row); err != nil {
		return "", fmt.Errorf("failed to insert profile: %w", err)
	}
	return row.ID, nil
}

// RecentProfiles returns up to limit profiles, newest first.
func (d *Database) RecentProfiles(ctx context.Context, limit int) ([]pulse.Profile, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := d.profiles.Find(ctx, func(b *duckdb.Builder) {
		b.OrderBy("-timestamp", "id").Limit(limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profilesFromRows(rows)
}

// LatestProfile returns the most recent stored profile, or nil if there is none.
func (d *Database) LatestProfile(ctx context.Context) (*pulse.Profile, error) {
	profiles, err := d.RecentProfiles(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// Profile loads one profile together with its slow queries and assets.
func (d *Database) Profile(ctx context.Context, id string) (*pulse.Profile, error) {
	row, err := d.profiles.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p, err := row.profile()
	if err != nil {
		return nil, err
	}

	queries, err := d.queries.Find(ctx, func(b *duckdb.Builder) {
		b.Eq("profile_id", id).OrderBy("-execution_time")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profile queries: %w", err)
	}
	for _, q := range queries {
		p.SlowQueries = append(p.SlowQueries, q.slowQuery())
	}

	if p.Assets, err = d.ProfileAssets(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// Aggregated computes the aggregate view over the most recent limit profiles.
func (d *Database) Aggregated(ctx context.Context, limit, sampleRate int) (pulse.AggregateView, error) {
	if limit <= 0 {
		limit = DefaultAggregateLimit
	}
	rows, err := d.profiles.Find(ctx, func(b *duckdb.Builder) {
		b.OrderBy("-timestamp", "id").Limit(limit)
	})
	if err != nil {
		return pulse.AggregateView{}, fmt.Errorf("failed to load profiles for aggregation: %w", err)
	}
	profiles, err := profilesFromRows(rows)
	if err != nil {
		return pulse.AggregateView{}, err
	}
	return pulse.Aggregate(profiles, sampleRate), nil
}

// Statistics returns table-wide counts and averages.
func (d *Database) Statistics(ctx context.Context) (*Statistics, error) {
	query, args := duckdb.NewQueryBuilder(profilesTable).
		Select("COUNT(*)", "AVG(total_time)", "AVG(total_memory)", "MIN(timestamp)", "MAX(timestamp)").
		MustBuild()
	d.trace(query, args)

	var (
		stats           Statistics
		avgTime, avgMem sql.NullFloat64
		oldest, latest  sql.NullTime
	)
	err := d.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalProfiles, &avgTime, &avgMem, &oldest, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	stats.AvgLoadTime = avgTime.Float64
	stats.AvgMemory = avgMem.Float64
	if oldest.Valid {
		stats.OldestProfile = &oldest.Time
	}
	if latest.Valid {
		stats.LatestProfile = &latest.Time
	}
	return &stats, nil
}
