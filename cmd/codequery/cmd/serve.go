package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codequery-dev/codequery/internal/mcp"
	"github.com/codequery-dev/codequery/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over HTTP and WebSocket",
		Long: `Serve starts the search engine with every configured store and
exposes it over HTTP (POST /v1/stores/{store}/search) and WebSocket
(/v1/ws). Telemetry is available at /v1/telemetry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			go rt.runMetricsFlusher(ctx)

			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			srv := server.New(rt.engine,
				server.WithTelemetry(rt.recorder),
				server.WithLogger(rt.logger),
			)
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

// NewMCPCmd creates the mcp command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search tool over MCP stdio",
		Long: `MCP runs the Model Context Protocol server on stdin/stdout so AI
agents can call the search tool directly. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			go rt.runMetricsFlusher(ctx)

			srv, err := mcp.NewServer(rt.engine, rt.logger)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
}
