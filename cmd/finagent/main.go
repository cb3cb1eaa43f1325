// Finagent runs a finance research agent that learns from its own policy
// violations.
//
// Usage:
//
//	# Research a company (offline mode needs no API keys)
//	finagent run NVIDIA --offline
//
//	# Inspect what the agent has learned
//	finagent memory show
//	finagent stats --format markdown
//
//	# Serve HTTP or MCP
//	finagent serve
//	finagent mcp
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath overrides ~/.config/finagent/config.yaml
	configPath string
	// memoryPath overrides memory.path
	memoryPath string
	// offline forces the deterministic planner and canned search data
	offline bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finagent",
	Short: "Self-improving finance research agent",
	Long: `finagent researches companies with an LLM agent, checks every run against
a tool-usage policy, and turns repeated mistakes into rules that shape later runs.

Configuration is read from ~/.config/finagent/config.yaml and FINAGENT_*
environment variables. GROQ_API_KEY and TAVILY_API_KEY are honoured.`,
	SilenceUsage: true,
	Version:      version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/finagent/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&memoryPath, "memory", "", "learning memory file (overrides memory.path)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "use the offline agent; no API keys needed")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "finagent\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}
