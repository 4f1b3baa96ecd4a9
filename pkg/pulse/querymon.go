package pulse

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Truncation limits for stored slow queries.
const (
	MaxSlowQuerySQLLen    = 5000
	MaxSlowQueryCallerLen = 255

	// simulateAboveQueries is the query count above which the degraded mode
	// reports a synthetic slow query.
	simulateAboveQueries = 20
)

// Synthetic entry reported by the degraded slow-query mode.
const (
	SimulatedSlowQuerySQL    = `SELECT * FROM wp_posts WHERE post_status = "publish" ORDER BY post_date DESC`
	SimulatedSlowQueryMs     = 75.5
	SimulatedSlowQueryCaller = "simulated (query log disabled)"
)

// QueryRecord is one executed query as seen by the host's database layer.
type QueryRecord struct {
	SQL      string
	Duration time.Duration
	Caller   string
}

// queryMonitor counts queries, keeps the optional query log and extracts slow queries.
type queryMonitor struct {
	thresholdMs float64
	saveQueries bool
	simulate    bool
	now         func() time.Time

	mu        sync.Mutex
	count     int
	log       []QueryRecord
	finalized bool
	slow      []SlowQuery
}

func newQueryMonitor(settings Settings, now func() time.Time) *queryMonitor {
	return &queryMonitor{
		thresholdMs: float64(ClampSlowQueryThreshold(settings.SlowQueryThreshold)),
		saveQueries: settings.SaveQueries,
		simulate:    settings.SimulateSlowQueries,
		now:         now,
	}
}

// onQueryStart counts a query and returns it unchanged.
func (q *queryMonitor) onQueryStart(sql string) string {
	q.mu.Lock()
	q.count++
	q.mu.Unlock()
	return sql
}

// record appends a finished query to the log when the log is retained.
func (q *queryMonitor) record(rec QueryRecord) {
	if !q.saveQueries {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finalized {
		return
	}
	q.log = append(q.log, rec)
}

func (q *queryMonitor) queryCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// finalize extracts slow queries. Only the first call does any work.
func (q *queryMonitor) finalize(requestURI string) []SlowQuery {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finalized {
		return q.slow
	}
	q.finalized = true

	ts := q.now()

	if q.saveQueries && len(q.log) > 0 {
		for _, rec := range q.log {
			ms := float64(rec.Duration) / float64(time.Millisecond)
			if ms <= q.thresholdMs {
				continue
			}
			caller := rec.Caller
			if caller == "" {
				caller = "Unknown"
			}
			q.slow = append(q.slow, SlowQuery{
				SQL:           truncate(rec.SQL, MaxSlowQuerySQLLen),
				ExecutionTime: ms,
				Caller:        truncate(caller, MaxSlowQueryCallerLen),
				RequestURI:    requestURI,
				Timestamp:     ts,
			})
		}
		return q.slow
	}

	if q.simulate && q.count > simulateAboveQueries {
		q.slow = append(q.slow, SlowQuery{
			SQL:           SimulatedSlowQuerySQL,
			ExecutionTime: SimulatedSlowQueryMs,
			Caller:        SimulatedSlowQueryCaller,
			RequestURI:    requestURI,
			Timestamp:     ts,
		})
	}
	return q.slow
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
