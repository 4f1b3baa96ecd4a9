// Package httpapi serves the reporting store as a JSON dashboard API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/coral-mesh/pulse/internal/constants"
	"github.com/coral-mesh/pulse/internal/database"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

// Reader is the read and maintenance side of the reporting store.
type Reader interface {
	RecentProfiles(ctx context.Context, limit int) ([]pulse.Profile, error)
	LatestProfile(ctx context.Context) (*pulse.Profile, error)
	ProfileAssets(ctx context.Context, profileID string) ([]pulse.Asset, error)
	AggregatedAssets(ctx context.Context, windowDays int) (*database.AssetSummary, error)
	SlowQueries(ctx context.Context, limit int) ([]pulse.SlowQuery, error)
	SlowQueryStats(ctx context.Context) (*database.SlowQueryStats, error)
	Aggregated(ctx context.Context, limit, sampleRate int) (pulse.AggregateView, error)
	Statistics(ctx context.Context) (*database.Statistics, error)
	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Cache is the read side of the fallback cache.
type Cache interface {
	Latest(ctx context.Context) (*pulse.Profile, error)
	Clear(ctx context.Context) error
}

var _ Reader = (*database.Database)(nil)

// Config holds the server dependencies.
type Config struct {
	Host string
	Port int

	Reader Reader
	// Cache is optional.
	Cache Cache

	// AggregateLimit is the default number of profiles in a summary.
	AggregateLimit int
	// SampleRate reports the current sample rate for confidence reporting.
	SampleRate func() int

	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer

	QueryTimeout time.Duration
	Logger       zerolog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	logger     zerolog.Logger
}

// New builds the server. It does not listen until Start or Serve.
func New(cfg Config) (*Server, error) {
	if cfg.Reader == nil {
		return nil, errors.New("httpapi: reader is required")
	}
	if cfg.Host == "" {
		cfg.Host = constants.DefaultDashboardHost
	}
	if cfg.Port == 0 {
		cfg.Port = constants.DefaultDashboardPort
	}
	if cfg.AggregateLimit <= 0 {
		cfg.AggregateLimit = database.DefaultAggregateLimit
	}
	if cfg.SampleRate == nil {
		cfg.SampleRate = func() int { return pulse.DefaultSampleRate }
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = constants.DefaultQueryTimeout
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "httpapi").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/profiles/recent", s.handleRecent)
	mux.HandleFunc("GET /api/v1/profiles/latest", s.handleLatest)
	mux.HandleFunc("GET /api/v1/profiles/{id}/assets", s.handleProfileAssets)
	mux.HandleFunc("GET /api/v1/queries/slow", s.handleSlowQueries)
	mux.HandleFunc("GET /api/v1/queries/stats", s.handleQueryStats)
	mux.HandleFunc("GET /api/v1/assets/summary", s.handleAssetSummary)
	mux.HandleFunc("GET /api/v1/export.csv", s.handleExport)
	mux.HandleFunc("DELETE /api/v1/data", s.handleClear)

	return NewAuditMiddleware(s.logger).Handler(mux)
}

// Start listens in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting dashboard API")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Dashboard API server error")
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping dashboard API")
	return s.httpServer.Shutdown(ctx)
}

// Serve listens until ctx is done, then shuts down within
// constants.DefaultShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// URL returns the base URL of the API.
func (s *Server) URL() string { return "http://" + s.httpServer.Addr }
