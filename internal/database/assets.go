package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

const (
	// DefaultAssetWindowDays is the look-back of the asset summary.
	DefaultAssetWindowDays = 7
	topAssetLimit          = 20
	assetJoin              = "assets a INNER JOIN profiles p ON a.profile_id = p.id"
)

// AssetSummary describes the assets of profiles captured in a recent window.
type AssetSummary struct {
	WindowDays  int               `json:"window_days"`
	TotalAssets int64             `json:"total_assets"`
	AvgCSSCount float64           `json:"avg_css_count"`
	AvgJSCount  float64           `json:"avg_js_count"`
	AvgSize     int64             `json:"avg_size"`
	BySource    []AssetSourceStat `json:"by_source"`
	TopAssets   []TopAsset        `json:"top_assets"`
}

// AssetSourceStat groups assets by who shipped them.
type AssetSourceStat struct {
	Source     pulse.AssetSource `json:"source"`
	SourceName string            `json:"source_name"`
	Type       pulse.AssetType   `json:"type"`
	Count      int64             `json:"count"`
	AvgSize    float64           `json:"avg_size"`
}

// TopAsset is one of the largest assets by average size.
type TopAsset struct {
	Handle     string            `json:"handle"`
	Src        string            `json:"src"`
	Type       pulse.AssetType   `json:"type"`
	Source     pulse.AssetSource `json:"source"`
	SourceName string            `json:"source_name"`
	AvgSize    float64           `json:"avg_size"`
	Frequency  int64             `json:"frequency"`
}

// InsertAssets writes each asset as its own row, keyed by handle in the result.
func (d *Database) InsertAssets(ctx context.Context, profileID string, assets []pulse.Asset) pulse.BatchResult {
	var result pulse.BatchResult
	if len(assets) == 0 {
		return result
	}

	now := d.now().UTC()
	rows := make([]assetRow, len(assets))
	for i, a := range assets {
		rows[i] = newAssetRow(d.newID(), profileID, a)
		if rows[i].Timestamp.IsZero() {
			rows[i].Timestamp = now
		}
	}

	for i, err := range d.assets.InsertEach(ctx, rows) {
		if err != nil {
			d.logger.Warn().Err(err).Str("profile_id", profileID).Str("handle", assets[i].Handle).Msg("Failed to insert asset")
		}
		result.Add(assets[i].Handle, err)
	}
	return result
}

// ProfileAssets returns the assets of one profile in load order.
func (d *Database) ProfileAssets(ctx context.Context, profileID string) ([]pulse.Asset, error) {
	rows, err := d.assets.Find(ctx, func(b *duckdb.Builder) {
		b.Where("profile_id = ?", profileID).OrderBy("load_order", "handle")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profile assets: %w", err)
	}
	out := make([]pulse.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.asset()
	}
	return out, nil
}

// AggregatedAssets summarises assets of profiles from the last windowDays days.
func (d *Database) AggregatedAssets(ctx context.Context, windowDays int) (*AssetSummary, error) {
	if windowDays <= 0 {
		windowDays = DefaultAssetWindowDays
	}
	since := d.now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour)
	summary := &AssetSummary{
		WindowDays: windowDays,
		BySource:   make([]AssetSourceStat, 0),
		TopAssets:  make([]TopAsset, 0),
	}

	query, args := duckdb.NewQueryBuilder(assetJoin).
		TimeColumn("p.timestamp").
		Select(
			"COUNT(*)",
			"COUNT(CASE WHEN a.type = 'css' THEN 1 END)",
			"COUNT(CASE WHEN a.type = 'js' THEN 1 END)",
			"COUNT(DISTINCT a.profile_id)",
			"AVG(a.size)",
		).
		Since(since).
		MustBuild()
	d.trace(query, args)

	var (
		css, js, withAssets int64
		avgSize             sql.NullFloat64
	)
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&summary.TotalAssets, &css, &js, &withAssets, &avgSize); err != nil {
		return nil, fmt.Errorf("failed to query asset totals: %w", err)
	}
	if withAssets > 0 {
		summary.AvgCSSCount = round2(float64(css) / float64(withAssets))
		summary.AvgJSCount = round2(float64(js) / float64(withAssets))
	}
	summary.AvgSize = int64(math.Round(avgSize.Float64))

	if err := d.assetsBySource(ctx, since, summary); err != nil {
		return nil, err
	}
	if err := d.topAssets(ctx, since, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (d *Database) assetsBySource(ctx context.Context, since time.Time, summary *AssetSummary) error {
	query, args := duckdb.NewQueryBuilder(assetJoin).
		TimeColumn("p.timestamp").
		Select("a.source", "a.source_name", "a.type", "COUNT(*) AS asset_count", "AVG(a.size) AS avg_size").
		Since(since).
		GroupBy("a.source", "a.source_name", "a.type").
		OrderBy("-asset_count", "a.source_name", "a.type").
		MustBuild()
	d.trace(query, args)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query assets by source: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			s       AssetSourceStat
			avgSize sql.NullFloat64
		)
		if err := rows.Scan(&s.Source, &s.SourceName, &s.Type, &s.Count, &avgSize); err != nil {
			return fmt.Errorf("failed to scan asset source: %w", err)
		}
		s.AvgSize = avgSize.Float64
		summary.BySource = append(summary.BySource, s)
	}
	return rows.Err()
}

func (d *Database) topAssets(ctx context.Context, since time.Time, summary *AssetSummary) error {
	query, args := duckdb.NewQueryBuilder(assetJoin).
		TimeColumn("p.timestamp").
		Select("a.handle", "a.src", "a.type", "a.source", "a.source_name",
			"AVG(a.size) AS avg_size", "COUNT(*) AS frequency").
		Where("a.size IS NOT NULL").
		Since(since).
		GroupBy("a.handle", "a.src", "a.type", "a.source", "a.source_name").
		OrderBy("-avg_size", "a.handle").
		Limit(topAssetLimit).
		MustBuild()
	d.trace(query, args)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query top assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a TopAsset
		if err := rows.Scan(&a.Handle, &a.Src, &a.Type, &a.Source, &a.SourceName, &a.AvgSize, &a.Frequency); err != nil {
			return fmt.Errorf("failed to scan top asset: %w", err)
		}
		summary.TopAssets = append(summary.TopAssets, a)
	}
	return rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
