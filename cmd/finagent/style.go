package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/orchestrator"
)

var (
	// Section title style - bold bright cyan
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	ruleStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// formatOutcome renders a finished run for the terminal.
func formatOutcome(o *orchestrator.Outcome, persistErr error) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Run %d", o.Record.RunNumber)))
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %s  temp=%.1f", o.Directive.Variant, o.Directive.Temperature)))
	sb.WriteString("\n")
	sb.WriteString(labelStyle.Render("Tools: "))
	sb.WriteString(strings.Join(o.Record.ToolsUsed, " -> "))
	sb.WriteString("\n")

	if o.Success() {
		sb.WriteString(successStyle.Render("✓ " + o.Summary()))
	} else {
		sb.WriteString(errorStyle.Render("✗ " + o.Summary()))
		for _, v := range o.Violations {
			sb.WriteString("\n  ")
			sb.WriteString(dimStyle.Render(fmt.Sprintf("%s: %s", v.Type, v.Detail)))
		}
	}
	sb.WriteString("\n")

	for _, r := range o.LearnedRules {
		sb.WriteString(ruleStyle.Render(fmt.Sprintf("Learned rule %s\n%s", r.ID, r.Description)))
		sb.WriteString("\n")
	}

	if persistErr != nil {
		sb.WriteString(warningStyle.Render("warning: run recorded but not persisted: " + persistErr.Error()))
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatMemory renders the learning memory summary.
func formatMemory(state *memory.State) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Learning Memory"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Total runs:     "), state.TotalRuns)
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Successful runs:"), state.SuccessfulRuns())
	fmt.Fprintf(&sb, "%s %d\n", labelStyle.Render("Mistakes:       "), len(state.Mistakes))

	counts := state.OccurrenceCounts()
	if len(counts) > 0 {
		sb.WriteString(titleStyle.Render("Mistake counts"))
		sb.WriteString("\n")
		for _, m := range state.Mistakes {
			if n, ok := counts[m.MistakeType]; ok {
				fmt.Fprintf(&sb, "  %s %d\n", labelStyle.Render(string(m.MistakeType)+":"), n)
				delete(counts, m.MistakeType)
			}
		}
	}

	rules := state.Rules()
	if len(rules) == 0 {
		sb.WriteString(dimStyle.Render("No rules learned yet"))
		sb.WriteString("\n")
		return sb.String()
	}
	sb.WriteString(titleStyle.Render("Learned rules"))
	sb.WriteString("\n")
	for _, r := range rules {
		sb.WriteString(ruleStyle.Render(fmt.Sprintf("%s (run %d)\n%s\n%s", r.ID, r.CreatedAtRun, r.Description, r.Constraint)))
		sb.WriteString("\n")
	}
	return sb.String()
}
