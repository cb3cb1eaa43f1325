package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/insights"
)

var statsFormat string

// statsCmd prints the learning progress report
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning progress",
	Long: `Analyze the learning memory: success rate, improvement between early and
recent runs, mistake frequency, patterns and recommendations.

Examples:
  finagent stats
  finagent stats --format markdown > report.md
  finagent stats --format json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", insights.FormatText, "output format: text, markdown or json")
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close(ctx)

	state, err := a.orch.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read memory: %w", err)
	}

	report := insights.Analyze(state)
	text, err := insights.FormatReport(report, statsFormat)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statsFormat == insights.FormatText {
		fmt.Fprintln(out, titleStyle.Render(report.Summary))
	}
	fmt.Fprintln(out, text)
	return nil
}
