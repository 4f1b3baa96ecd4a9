package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/pulse/internal/cli/helpers"
	"github.com/coral-mesh/pulse/internal/errors"
	"github.com/coral-mesh/pulse/internal/mcp"
)

func newMCPCmd(env *helpers.Env) *cobra.Command {
	var (
		tools []string
		audit bool
		list  bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the reporting store to MCP clients over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so assistants can
query plugin cost, slow queries and assets. Logs go to stderr.

Example Claude Desktop entry:

  "pulse": { "command": "pulse", "args": ["mcp"] }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			logger := env.Logger(cfg, true)

			db, err := helpers.OpenStore(cfg, true, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, db, "Failed to close reporting store")

			settings := cfg.Settings()
			srv, err := mcp.New(db, mcp.Config{
				EnabledTools:   tools,
				AuditEnabled:   audit,
				AggregateLimit: cfg.Dashboard.AggregateLimit,
				SampleRate:     func() int { return settings.SampleRate },
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			if list {
				for _, name := range srv.ListToolNames() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&tools, "tools", nil, "Only offer these tools")
	cmd.Flags().BoolVar(&audit, "audit", false, "Log every tool call with its arguments")
	cmd.Flags().BoolVar(&list, "list-tools", false, "Print the enabled tool names and exit")
	return cmd
}
