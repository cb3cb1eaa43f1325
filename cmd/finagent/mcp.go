package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/mcp"
)

// mcpCmd serves MCP tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve agent tools over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout exposing agent_run, memory_status,
memory_reset and learning_report. Logs go to stderr.

Example client configuration:
  {"command": "finagent", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

// runMCP blocks until the client disconnects or a signal arrives.
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{needsAgent: true})
	if err != nil {
		return err
	}
	defer a.close(ctx)

	cfg := mcp.DefaultConfig()
	cfg.Version = version
	cfg.Logger = a.logger.Underlying().Named("mcp")

	srv, err := mcp.NewServer(cfg, a.orch)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}
