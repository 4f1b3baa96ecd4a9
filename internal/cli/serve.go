package cli

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/config"
	"github.com/coral-mesh/pulse/internal/errors"
	"github.com/coral-mesh/pulse/internal/httpapi"
	"github.com/coral-mesh/pulse/internal/retention"
)

func newServeCmd(env *helpers.Env) *cobra.Command {
	var (
		host    string
		port    int
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and run retention",
		Long: `Serve the reporting store over HTTP, purge old profiles on the retention
schedule and reload the config file when it changes.

The store is opened read-write. A host process that writes profiles into the
same DuckDB file holds its lock, so run the API inside that host instead (see
examples/host) or point serve at a copy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Dashboard.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Dashboard.Port = port
			}
			logger := env.Logger(cfg, false)

			db, err := helpers.OpenStore(cfg, false, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, db, "Failed to close reporting store")

			var cache httpapi.Cache
			if c, err := helpers.OpenCache(cfg, logger); err != nil {
				logger.Warn().Err(err).Msg("Serving without fallback cache")
			} else {
				defer errors.DeferClose(logger, c, "Failed to close fallback cache")
				cache = c
			}

			var sampleRate atomic.Int64
			sampleRate.Store(int64(cfg.Settings().SampleRate))

			api, err := httpapi.New(httpapi.Config{
				Host:           cfg.Dashboard.Host,
				Port:           cfg.Dashboard.Port,
				Reader:         db,
				Cache:          cache,
				AggregateLimit: cfg.Dashboard.AggregateLimit,
				SampleRate:     func() int { return int(sampleRate.Load()) },
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			purge, err := retention.New(db, retention.Config{
				Days:     cfg.Storage.RetentionDays,
				Interval: cfg.Storage.RetentionInterval,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return api.Serve(ctx) })
			g.Go(func() error { return purge.Run(ctx) })
			if !noWatch {
				watcher := config.NewWatcher(env.Loader, env.ConfigPath, logger, func(next *config.Config) {
					sampleRate.Store(int64(next.Settings().SampleRate))
					purge.SetDays(next.Storage.RetentionDays)
				})
				g.Go(func() error {
					if err := watcher.Run(ctx); err != nil {
						logger.Warn().Err(err).Msg("Config reload disabled")
					}
					return nil
				})
			}

			logger.Info().Str("url", api.URL()).Msg("Pulse dashboard API running")
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides dashboard.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides dashboard.port)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the config file on change")
	return cmd
}

