// Package cmd provides the CLI commands for codequery.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codequery-dev/codequery/pkg/version"
)

// Persistent flags shared by all commands.
var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the codequery CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codequery",
		Short: "Hybrid code search engine",
		Long: `codequery serves hybrid search (BM25 + semantic) over pre-indexed
code stores, with reciprocal-rank fusion, cross-encoder reranking, and
per-query telemetry.

Transports: HTTP/JSON, WebSocket, and a Model Context Protocol tool
for AI agents.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("codequery version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
