package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/directive"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Planner decides which tools to call and in what order.
type Planner interface {
	Plan(ctx context.Context, req Request) ([]policy.Tool, error)
}

// PlanningPrompt wraps the directive's instruction text with the company
// and the tool-listing task.
func PlanningPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.InstructionText)
	b.WriteString("\n\nCompany to analyze: ")
	b.WriteString(req.Query)
	b.WriteString("\n\n")
	if req.Enforced {
		b.WriteString("TASK: List the EXACT tools you will call, one per line, in the correct order.\n\nVALID TOOL NAMES:\n")
	} else {
		b.WriteString("TASK: List the tools you'll use to analyze this company, one per line, in order.\n\nAVAILABLE TOOLS:\n")
	}
	for _, t := range policy.AllTools() {
		b.WriteString("- ")
		b.WriteString(string(t))
		b.WriteString("\n")
	}
	if req.Enforced {
		b.WriteString("\nYOUR TOOL SEQUENCE (one per line):")
	} else {
		b.WriteString("\nYOUR TOOL LIST:")
	}
	return b.String()
}

var (
	listMarker = regexp.MustCompile(`^(?:[-*•>]+\s*|\d+\s*[.):]\s*)+`)
	identifier = regexp.MustCompile(`^[a-z_]+`)
)

// ParsePlan extracts tool names from a model's line-per-tool answer.
// Bullets, numbering and code quoting are stripped, as is any commentary
// after the tool name. Lines naming no known tool are dropped.
func ParsePlan(text string) []policy.Tool {
	var plan []policy.Tool
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(line, " \t`'\"*")
		if t, ok := policy.ParseTool(identifier.FindString(line)); ok {
			plan = append(plan, t)
		}
	}
	return plan
}

// LLMPlanner asks a chat model for the plan.
type LLMPlanner struct {
	llm Completer
}

// NewLLMPlanner returns a planner backed by llm.
func NewLLMPlanner(llm Completer) *LLMPlanner {
	return &LLMPlanner{llm: llm}
}

// Plan implements Planner. Before any rule is enforced a plan missing the
// report gets one appended, since the model commonly forgets it.
func (p *LLMPlanner) Plan(ctx context.Context, req Request) ([]policy.Tool, error) {
	text, err := p.llm.Complete(ctx, PlanningPrompt(req), req.Temperature)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	plan := ParsePlan(text)
	if !req.Enforced && !policy.Trace(plan).Contains(policy.ToolReport) {
		plan = append(plan, policy.ToolReport)
	}
	return plan, nil
}

// OfflinePlanner reproduces each prompt variant's characteristic behavior
// without a model.
type OfflinePlanner struct{}

var (
	fullPlan = []policy.Tool{
		policy.ToolOverview, policy.ToolPrice, policy.ToolNews, policy.ToolMetrics,
		policy.ToolSentiment, policy.ToolReport,
	}

	variantPlans = map[string][]policy.Tool{
		directive.VariantReportEarly: {policy.ToolOverview, policy.ToolPrice, policy.ToolReport, policy.ToolNews, policy.ToolMetrics},
		directive.VariantNewsSkipper: {policy.ToolOverview, policy.ToolMetrics, policy.ToolPrice, policy.ToolReport},
		directive.VariantSpeed:       {policy.ToolOverview, policy.ToolPrice, policy.ToolNews, policy.ToolSentiment, policy.ToolReport},
		directive.VariantMinimalist:  {policy.ToolOverview, policy.ToolPrice, policy.ToolNews, policy.ToolReport},
	}
)

// Plan implements Planner.
func (OfflinePlanner) Plan(ctx context.Context, req Request) ([]policy.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := fullPlan
	if !req.Enforced {
		if p, ok := variantPlans[req.Variant]; ok {
			src = p
		}
	}
	plan := make([]policy.Tool, len(src))
	copy(plan, src)
	return plan, nil
}
