// Package mcp exposes the reporting store as Model Context Protocol tools so
// assistants can ask about plugin cost, slow queries and assets.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
	"github.com/coral-mesh/pulse/pkg/version"
)

// Tool names.
const (
	ToolSummary        = "pulse_summary"
	ToolRecentRequests = "pulse_recent_requests"
	ToolSlowQueries    = "pulse_slow_queries"
	ToolAssetsSummary  = "pulse_assets_summary"
	ToolInsights       = "pulse_insights"
)

// Reader is the part of the reporting store the tools query.
type Reader interface {
	RecentProfiles(ctx context.Context, limit int) ([]pulse.Profile, error)
	AggregatedAssets(ctx context.Context, windowDays int) (*database.AssetSummary, error)
	SlowQueries(ctx context.Context, limit int) ([]pulse.SlowQuery, error)
	SlowQueryStats(ctx context.Context) (*database.SlowQueryStats, error)
	Aggregated(ctx context.Context, limit, sampleRate int) (pulse.AggregateView, error)
	Statistics(ctx context.Context) (*database.Statistics, error)
}

// Config controls which tools are offered.
type Config struct {
	// EnabledTools restricts the tool set; empty enables all.
	EnabledTools []string
	// AuditEnabled logs every tool call with its arguments.
	AuditEnabled bool
	// AggregateLimit is the default number of profiles aggregated.
	AggregateLimit int
	// SampleRate reports the configured sample rate.
	SampleRate func() int
}

// Server is the pulse MCP server.
type Server struct {
	mcpServer *server.MCPServer
	reader    Reader
	config    Config
	logger    zerolog.Logger
	handlers  map[string]server.ToolHandlerFunc
}

// New registers the enabled tools over reader.
func New(reader Reader, config Config, logger zerolog.Logger) (*Server, error) {
	if reader == nil {
		return nil, fmt.Errorf("mcp: reader is required")
	}
	if config.AggregateLimit <= 0 {
		config.AggregateLimit = database.DefaultAggregateLimit
	}
	if config.SampleRate == nil {
		config.SampleRate = func() int { return pulse.DefaultSampleRate }
	}

	s := &Server{
		mcpServer: server.NewMCPServer("pulse", version.Version, server.WithToolCapabilities(false)),
		reader:    reader,
		config:    config,
		logger:    logger.With().Str("component", "mcp").Logger(),
		handlers:  make(map[string]server.ToolHandlerFunc),
	}
	s.registerTools()

	s.logger.Debug().Strs("tools", s.ListToolNames()).Msg("MCP server initialized")
	return s, nil
}

func (s *Server) registerTools() {
	s.register(mcp.NewTool(ToolSummary,
		mcp.WithDescription("Per-plugin load time and memory averaged over the most recent sampled requests, with overall statistics and a confidence level."),
		mcp.WithNumber("limit", mcp.Description("Number of recent profiles to aggregate (default 100)")),
	), s.handleSummary)

	s.register(mcp.NewTool(ToolRecentRequests,
		mcp.WithDescription("The most recently profiled requests with their total time, memory, query count and slowest plugins."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of requests (default 20)")),
	), s.handleRecentRequests)

	s.register(mcp.NewTool(ToolSlowQueries,
		mcp.WithDescription("Database queries slower than the configured threshold, slowest first, optionally with frequency statistics by query fingerprint."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of queries (default 100)")),
		mcp.WithBoolean("include_stats", mcp.Description("Append count, average, min and max and the most frequent slow queries")),
	), s.handleSlowQueries)

	s.register(mcp.NewTool(ToolAssetsSummary,
		mcp.WithDescription("CSS and JS assets seen over a time window, grouped by the plugin, theme or core component that enqueued them, with the largest assets."),
		mcp.WithNumber("days", mcp.Description("Window in days (default 7)")),
	), s.handleAssetsSummary)

	s.register(mcp.NewTool(ToolInsights,
		mcp.WithDescription("Findings about overall performance: slow plugins, high load time, high memory and data confidence."),
		mcp.WithNumber("limit", mcp.Description("Number of recent profiles to analyse (default 100)")),
	), s.handleInsights)
}

func (s *Server) register(tool mcp.Tool, handler server.ToolHandlerFunc) {
	if !s.isToolEnabled(tool.Name) {
		return
	}
	s.handlers[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

// ServeStdio serves MCP over in and out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info().Int("tools", len(s.handlers)).Msg("Serving MCP on stdio")
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, in, out)
}

// ListToolNames returns the enabled tools in sorted order.
func (s *Server) ListToolNames() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ExecuteTool runs a tool by name with JSON arguments and returns its text.
// A tool-level failure is returned as an error.
func (s *Server) ExecuteTool(ctx context.Context, name, argumentsJSON string) (string, error) {
	handler, ok := s.handlers[name]
	if !ok {
		return "", fmt.Errorf("tool not found or not enabled: %s", name)
	}

	args := map[string]any{}
	if strings.TrimSpace(argumentsJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
	}

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := handler(ctx, req)
	if err != nil {
		return "", err
	}
	text := resultText(res)
	if res.IsError {
		return "", fmt.Errorf("%s", text)
	}
	return text, nil
}

func (s *Server) isToolEnabled(name string) bool {
	return len(s.config.EnabledTools) == 0 || slices.Contains(s.config.EnabledTools, name)
}

func (s *Server) auditToolCall(name string, args any) {
	if !s.config.AuditEnabled {
		return
	}
	raw, _ := json.Marshal(args)
	s.logger.Info().Str("tool", name).RawJSON("args", raw).Msg("MCP tool called")
}

// parseArgs decodes the request arguments into v.
func parseArgs(request mcp.CallToolRequest, v any) error {
	if request.Params.Arguments == nil {
		return nil
	}
	raw, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}
	return nil
}

func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
