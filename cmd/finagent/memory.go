package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	memoryJSON bool
	resetYes   bool
)

// memoryCmd groups learning memory operations
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or reset learning memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show run counts, mistakes and learned rules",
	Long: `Show the persisted learning memory.

Examples:
  finagent memory show
  finagent memory show --json`,
	Args: cobra.NoArgs,
	RunE: runMemoryShow,
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Irreversibly clear all learning memory",
	Long: `Clear run history, mistakes and learned rules. The agent starts over
with the weak rotated prompts.

Examples:
  # Prompt for confirmation
  finagent memory reset

  # Skip the prompt
  finagent memory reset --yes`,
	Args: cobra.NoArgs,
	RunE: runMemoryReset,
}

func init() {
	memoryShowCmd.Flags().BoolVar(&memoryJSON, "json", false, "print the raw memory document")
	memoryResetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")

	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryResetCmd)
}

// runMemoryShow handles the memory show command
func runMemoryShow(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	if memoryJSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode memory: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, formatMemory(state))
	return nil
}

// runMemoryReset handles the memory reset command
func runMemoryReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		fmt.Fprint(cmd.OutOrStdout(), warningStyle.Render("This deletes all learned rules and run history. Continue? [y/N] "))
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Reset cancelled"))
			return nil
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if _, err := a.orch.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset memory: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Memory reset!"))
	return nil
}
