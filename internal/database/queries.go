package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/pulse/internal/duckdb"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

const (
	// DefaultSlowQueryLimit is the size of the slow query list.
	DefaultSlowQueryLimit = 100
	frequentQueryLimit    = 10
	queryPreviewLen       = 100
)

// SlowQueryStats summarises every stored slow query.
type SlowQueryStats struct {
	Total    int64           `json:"total_slow_queries"`
	AvgTime  float64         `json:"avg_execution_time"`
	MaxTime  float64         `json:"max_execution_time"`
	MinTime  float64         `json:"min_execution_time"`
	Frequent []FrequentQuery `json:"frequent_queries"`
}

// FrequentQuery is a group of slow queries sharing a fingerprint.
type FrequentQuery struct {
	Hash      string  `json:"query_hash"`
	Preview   string  `json:"query_preview"`
	Frequency int64   `json:"frequency"`
	AvgTime   float64 `json:"avg_time"`
	MaxTime   float64 `json:"max_time"`
}

// Fingerprint groups statements that differ only in whitespace.
func Fingerprint(sqlText string) string {
	normalized := strings.Join(strings.Fields(sqlText), " ")
	return fmt.Sprintf("%016x", xxh3.HashString(normalized))
}

// InsertSlowQueries writes each query as its own row. Keys in the result are
// the positions in queries.
func (d *Database) InsertSlowQueries(ctx context.Context, profileID string, queries []pulse.SlowQuery) pulse.BatchResult {
	var result pulse.BatchResult
	if len(queries) == 0 {
		return result
	}

	rows := make([]slowQueryRow, len(queries))
	for i, q := range queries {
		rows[i] = slowQueryRow{
			ID:            d.newID(),
			ProfileID:     profileID,
			SQL:           q.SQL,
			Hash:          Fingerprint(q.SQL),
			ExecutionTime: q.ExecutionTime,
			Caller:        q.Caller,
			RequestURI:    q.RequestURI,
			Timestamp:     q.Timestamp.UTC(),
		}
		if rows[i].Timestamp.IsZero() {
			rows[i].Timestamp = d.now().UTC()
		}
	}

	for i, err := range d.queries.InsertEach(ctx, rows) {
		if err != nil {
			d.logger.Warn().Err(err).Str("profile_id", profileID).Int("index", i).Msg("Failed to insert slow query")
		}
		result.Add(strconv.Itoa(i), err)
	}
	return result
}

// SlowQueries returns the slowest stored queries, ties broken by recency.
func (d *Database) SlowQueries(ctx context.Context, limit int) ([]pulse.SlowQuery, error) {
	if limit <= 0 {
		limit = DefaultSlowQueryLimit
	}
	rows, err := d.queries.Find(ctx, func(b *duckdb.Builder) {
		b.OrderBy("-execution_time", "-timestamp").Limit(limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list slow queries: %w", err)
	}
	out := make([]pulse.SlowQuery, len(rows))
	for i, r := range rows {
		out[i] = r.slowQuery()
	}
	return out, nil
}

// SlowQueryStats returns the aggregate numbers and the most frequent fingerprints.
func (d *Database) SlowQueryStats(ctx context.Context) (*SlowQueryStats, error) {
	query, args := duckdb.NewQueryBuilder(slowQueriesTable).
		Select("COUNT(*)", "AVG(execution_time)", "MAX(execution_time)", "MIN(execution_time)").
		MustBuild()
	d.trace(query, args)

	var (
		stats                 SlowQueryStats
		avg, slowest, fastest sql.NullFloat64
	)
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&stats.Total, &avg, &slowest, &fastest); err != nil {
		return nil, fmt.Errorf("failed to query slow query stats: %w", err)
	}
	stats.AvgTime, stats.MaxTime, stats.MinTime = avg.Float64, slowest.Float64, fastest.Float64

	query, args = duckdb.NewQueryBuilder(slowQueriesTable).
		Select(
			"query_hash",
			fmt.Sprintf("MIN(LEFT(query_sql, %d)) AS preview", queryPreviewLen),
			"COUNT(*) AS frequency",
			"AVG(execution_time) AS avg_time",
			"MAX(execution_time) AS max_time",
		).
		GroupBy("query_hash").
		OrderBy("-frequency", "-avg_time").
		Limit(frequentQueryLimit).
		MustBuild()
	d.trace(query, args)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequent slow queries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats.Frequent = make([]FrequentQuery, 0)
	for rows.Next() {
		var fq FrequentQuery
		if err := rows.Scan(&fq.Hash, &fq.Preview, &fq.Frequency, &fq.AvgTime, &fq.MaxTime); err != nil {
			return nil, fmt.Errorf("failed to scan frequent query: %w", err)
		}
		stats.Frequent = append(stats.Frequent, fq)
	}
	return &stats, rows.Err()
}
