package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

const (
	topPluginsPerRequest = 3
	queryPreviewLen      = 120
)

func (s *Server) handleSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input LimitInput
	if err := parseArgs(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.auditToolCall(ToolSummary, input)

	view, err := s.reader.Aggregated(ctx, intOr(input.Limit, s.config.AggregateLimit), s.config.SampleRate())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to aggregate profiles: %v", err)), nil
	}
	stats, err := s.reader.Statistics(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load statistics: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Profiles stored: %d", stats.TotalProfiles)
	if stats.OldestProfile != nil && stats.LatestProfile != nil {
		fmt.Fprintf(&sb, " (%s to %s)", stats.OldestProfile.Format(time.RFC3339), stats.LatestProfile.Format(time.RFC3339))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Aggregated: %d most recent, sample rate %d%%, confidence %s\n",
		view.TotalProfiles, view.SampleRate, view.Confidence)
	fmt.Fprintf(&sb, "Average load time: %sms, average memory: %s\n\n",
		pulse.FormatNumber(view.AvgLoadTime, 2), pulse.FormatBytes(view.AvgMemory))

	if len(view.Plugins) == 0 {
		sb.WriteString("No plugin timings recorded yet.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}
	sb.WriteString("Plugins by average load time:\n")
	for i, p := range view.Plugins {
		fmt.Fprintf(&sb, "%d. %s: %sms, %s, %.1f files, seen in %d profiles\n",
			i+1, p.Name, pulse.FormatNumber(p.AvgTime, 2), pulse.FormatBytes(p.AvgMemory), p.AvgFiles, p.ProfileCount)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleRecentRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input LimitInput
	if err := parseArgs(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.auditToolCall(ToolRecentRequests, input)

	profiles, err := s.reader.RecentProfiles(ctx, intOr(input.Limit, database.DefaultRecentLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load recent requests: %v", err)), nil
	}
	if len(profiles) == 0 {
		return mcp.NewToolResultText("No requests have been profiled yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d recent requests:\n\n", len(profiles))
	for _, p := range profiles {
		fmt.Fprintf(&sb, "%s %s %s [%s, %s]\n", p.Timestamp.Format(time.RFC3339), p.Method, p.RequestURI, p.RequestType, p.PageType)
		fmt.Fprintf(&sb, "  total %sms, memory %s, %d queries\n",
			pulse.FormatNumber(p.TotalTime, 2), pulse.FormatBytes(float64(p.TotalMemory)), p.QueryCount)
		if top := topPlugins(p.Plugins, topPluginsPerRequest); top != "" {
			fmt.Fprintf(&sb, "  slowest: %s\n", top)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleSlowQueries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input SlowQueriesInput
	if err := parseArgs(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.auditToolCall(ToolSlowQueries, input)

	queries, err := s.reader.SlowQueries(ctx, intOr(input.Limit, database.DefaultSlowQueryLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load slow queries: %v", err)), nil
	}

	var sb strings.Builder
	if len(queries) == 0 {
		sb.WriteString("No slow queries recorded.\n")
	} else {
		fmt.Fprintf(&sb, "%d slow queries, slowest first:\n\n", len(queries))
		for i, q := range queries {
			fmt.Fprintf(&sb, "%d. %sms %s\n", i+1, pulse.FormatNumber(q.ExecutionTime, 2), preview(q.SQL))
			fmt.Fprintf(&sb, "   caller: %s, uri: %s\n", q.Caller, q.RequestURI)
		}
	}

	if input.IncludeStats != nil && *input.IncludeStats {
		stats, err := s.reader.SlowQueryStats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load slow query stats: %v", err)), nil
		}
		fmt.Fprintf(&sb, "\nTotal %d, avg %sms, max %sms, min %sms\n", stats.Total,
			pulse.FormatNumber(stats.AvgTime, 2), pulse.FormatNumber(stats.MaxTime, 2), pulse.FormatNumber(stats.MinTime, 2))
		if len(stats.Frequent) > 0 {
			sb.WriteString("Most frequent:\n")
			for _, f := range stats.Frequent {
				fmt.Fprintf(&sb, "  %dx avg %sms max %sms %s\n", f.Frequency,
					pulse.FormatNumber(f.AvgTime, 2), pulse.FormatNumber(f.MaxTime, 2), preview(f.Preview))
			}
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleAssetsSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input AssetsSummaryInput
	if err := parseArgs(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.auditToolCall(ToolAssetsSummary, input)

	summary, err := s.reader.AggregatedAssets(ctx, intOr(input.Days, database.DefaultAssetWindowDays))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load asset summary: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Assets over the last %d days: %d total\n", summary.WindowDays, summary.TotalAssets)
	fmt.Fprintf(&sb, "Per page: %.1f CSS, %.1f JS, average size %s\n",
		summary.AvgCSSCount, summary.AvgJSCount, pulse.FormatBytes(float64(summary.AvgSize)))

	if len(summary.BySource) > 0 {
		sb.WriteString("\nBy source:\n")
		for _, b := range summary.BySource {
			fmt.Fprintf(&sb, "  %s %s (%s): %d assets, avg %s\n", b.Source, b.SourceName, b.Type, b.Count, pulse.FormatBytes(b.AvgSize))
		}
	}
	if len(summary.TopAssets) > 0 {
		sb.WriteString("\nLargest assets:\n")
		for i, a := range summary.TopAssets {
			fmt.Fprintf(&sb, "  %d. %s (%s, %s %s) avg %s, seen %d times\n",
				i+1, a.Handle, a.Type, a.Source, a.SourceName, pulse.FormatBytes(a.AvgSize), a.Frequency)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input LimitInput
	if err := parseArgs(request, &input); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.auditToolCall(ToolInsights, input)

	view, err := s.reader.Aggregated(ctx, intOr(input.Limit, s.config.AggregateLimit), s.config.SampleRate())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to aggregate profiles: %v", err)), nil
	}

	var sb strings.Builder
	for _, in := range pulse.Insights(view) {
		fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(in.Type), in.Message)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func topPlugins(plugins map[string]pulse.PluginTiming, n int) string {
	list := make([]pulse.PluginTiming, 0, len(plugins))
	for _, p := range plugins {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].LoadTime != list[j].LoadTime {
			return list[i].LoadTime > list[j].LoadTime
		}
		return list[i].Name < list[j].Name
	})

	parts := make([]string, 0, n)
	for _, p := range list[:min(n, len(list))] {
		parts = append(parts, fmt.Sprintf("%s %sms", p.Name, pulse.FormatNumber(p.LoadTime, 2)))
	}
	return strings.Join(parts, ", ")
}

func preview(sql string) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > queryPreviewLen {
		return sql[:queryPreviewLen] + "..."
	}
	return sql
}
