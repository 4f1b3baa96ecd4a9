package mcp

// Optional fields are pointers so an absent argument keeps the default.

// LimitInput is the input of pulse_summary, pulse_recent_requests and pulse_insights.
type LimitInput struct {
	Limit *int `json:"limit,omitempty"`
}

// SlowQueriesInput is the input of pulse_slow_queries.
type SlowQueriesInput struct {
	Limit        *int  `json:"limit,omitempty"`
	IncludeStats *bool `json:"include_stats,omitempty"`
}

// AssetsSummaryInput is the input of pulse_assets_summary.
type AssetsSummaryInput struct {
	Days *int `json:"days,omitempty"`
}

func intOr(v *int, def int) int {
	if v == nil || *v < 1 {
		return def
	}
	return *v
}
