package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/orchestrator"
)

var (
	runTimes   int
	runVerbose bool
)

// runCmd executes orchestrated runs
var runCmd = &cobra.Command{
	Use:   "run <company>",
	Short: "Research a company and learn from any policy violations",
	Long: `Run the finance agent for a company. Each run is checked against the tool
policy; mistakes are recorded and a mistake seen twice becomes a rule that the
next run must follow.

Examples:
  # One run against live APIs
  finagent run NVIDIA

  # Watch the agent learn without API keys
  finagent run NVIDIA --offline --times 4`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runTimes, "times", "n", 1, "number of consecutive runs")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "print each state transition")
}

// runRun handles the run command
func runRun(cmd *cobra.Command, args []string) error {
	if runTimes < 1 {
		return fmt.Errorf("--times must be at least 1")
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	opts := appOptions{needsAgent: true}
	if runVerbose {
		opts.progress = func(p orchestrator.Progress) {
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("  [run %d] %s %s", p.RunNumber, p.State, p.Message)))
		}
	}

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	for i := 0; i < runTimes; i++ {
		outcome, err := a.orch.Run(ctx, args[0])
		if outcome == nil {
			return runFailure(cmd, err)
		}
		fmt.Fprint(out, formatOutcome(outcome, err))
		if outcome.ReportText != "" && runTimes == 1 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, outcome.ReportText)
		}
	}
	return nil
}

// runFailure prints the user message for a run that produced no outcome.
func runFailure(cmd *cobra.Command, err error) error {
	var execErr *orchestrator.ExecutionError
	switch {
	case errors.As(err, &execErr):
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("agent execution failed: "+execErr.Err.Error()))
	case errors.Is(err, orchestrator.ErrEmptyQuery):
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("company name is required"))
	default:
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(err.Error()))
	}
	return err
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
