// Package duckdb holds the small persistence toolkit used by the reporting
// store: a reflection based row mapper, a query builder and DSN handling.
//
// Rows map onto structs through `duckdb` field tags:
//
//	type profileRow struct {
//	    ID        string    `duckdb:"id,pk"`
//	    Timestamp time.Time `duckdb:"timestamp"`
//	}
//
//	profiles := duckdb.NewTable[profileRow](db, "profiles")
//	err := profiles.Insert(ctx, &row)
//	recent, err := profiles.Find(ctx, func(b *duckdb.Builder) {
//	    b.OrderBy("-timestamp").Limit(20)
//	})
//
// The builder only renders SQL; callers execute it:
//
//	q, args, err := duckdb.NewQueryBuilder("slow_queries").
//	    Select("query_hash", "COUNT(*) AS n").
//	    Since(cutoff).
//	    GroupBy("query_hash").
//	    OrderBy("-n").
//	    Limit(10).
//	    Build()
package duckdb
