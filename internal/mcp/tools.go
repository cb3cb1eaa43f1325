package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/insights"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// errInvalidInput marks tool arguments rejected before any work is done.
var errInvalidInput = errors.New("invalid tool input")

type agentRunInput struct {
	Query string `json:"query" jsonschema:"Company or ticker to research, e.g. NVIDIA"`
}

type agentRunOutput struct {
	RunNumber    int                `json:"run_number" jsonschema:"Run number assigned to this run"`
	Success      bool               `json:"success" jsonschema:"True when the run followed the tool policy"`
	Message      string             `json:"message" jsonschema:"One-line outcome"`
	ToolsUsed    []string           `json:"tools_used" jsonschema:"Tools in invocation order"`
	Violations   []policy.Violation `json:"violations" jsonschema:"Policy violations detected"`
	LearnedRules []string           `json:"learned_rules,omitempty" jsonschema:"Rules created by this run"`
	Variant      string             `json:"variant" jsonschema:"Prompt variant used"`
	Temperature  float64            `json:"temperature" jsonschema:"Decision temperature used"`
	Report       string             `json:"report,omitempty" jsonschema:"Generated report text"`
	Warning      string             `json:"warning,omitempty" jsonschema:"Set when the run was not persisted"`
}

type memoryStatusInput struct{}

type memoryStatusOutput struct {
	TotalRuns        int            `json:"total_runs" jsonschema:"Completed runs"`
	SuccessfulRuns   int            `json:"successful_runs" jsonschema:"Runs without violations"`
	MistakesRecorded int            `json:"mistakes_recorded" jsonschema:"Mistake log entries"`
	OccurrenceCounts map[string]int `json:"occurrence_counts" jsonschema:"Occurrences per mistake type"`
	Rules            []memory.Rule  `json:"rules" jsonschema:"Learned rules in creation order"`
}

type memoryResetInput struct {
	Confirm bool `json:"confirm" jsonschema:"Must be true; reset discards all learning history"`
}

type memoryResetOutput struct {
	TotalRuns int    `json:"total_runs" jsonschema:"Runs after reset (always 0)"`
	Message   string `json:"message" jsonschema:"Confirmation message"`
}

type learningReportInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: text, markdown or json (default: text)"`
}

type learningReportOutput struct {
	Summary       string              `json:"summary" jsonschema:"High-level summary"`
	Statistics    insights.Statistics `json:"statistics" jsonschema:"Numerical statistics"`
	Patterns      []string            `json:"patterns" jsonschema:"Recurring mistake patterns"`
	Format        string              `json:"format" jsonschema:"Output format used"`
	FormattedText string              `json:"formatted_text" jsonschema:"Formatted report"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "agent_run",
		Description: "Research a company with the finance agent. The run is checked against the tool policy, mistakes are recorded, and repeated mistakes become rules that shape later runs.",
	}, instrument(s, "agent_run", s.handleAgentRun))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_status",
		Description: "Show learning memory: run counts, mistake tallies and learned rules.",
	}, instrument(s, "memory_status", s.handleMemoryStatus))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_reset",
		Description: "Irreversibly clear all learning memory. Requires confirm=true.",
	}, instrument(s, "memory_reset", s.handleMemoryReset))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "learning_report",
		Description: "Report learning progress: success rate, improvement, mistake frequency and recommendations.",
	}, instrument(s, "learning_report", s.handleLearningReport))
}

func (s *Server) handleAgentRun(ctx context.Context, _ *mcp.CallToolRequest, args agentRunInput) (*mcp.CallToolResult, agentRunOutput, error) {
	if args.Query == "" {
		return nil, agentRunOutput{}, fmt.Errorf("%w: query is required", errInvalidInput)
	}

	outcome, err := s.runner.Run(ctx, args.Query)
	if outcome == nil {
		return nil, agentRunOutput{}, err
	}

	out := agentRunOutput{
		RunNumber:   outcome.Record.RunNumber,
		Success:     outcome.Success(),
		Message:     outcome.Summary(),
		ToolsUsed:   outcome.Record.ToolsUsed,
		Violations:  outcome.Violations,
		Variant:     outcome.Directive.Variant,
		Temperature: outcome.Directive.Temperature,
		Report:      outcome.ReportText,
	}
	if out.Violations == nil {
		out.Violations = []policy.Violation{}
	}
	for _, r := range outcome.LearnedRules {
		out.LearnedRules = append(out.LearnedRules, r.ID)
	}
	if err != nil {
		out.Warning = "run recorded but not persisted: " + err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleMemoryStatus(ctx context.Context, _ *mcp.CallToolRequest, _ memoryStatusInput) (*mcp.CallToolResult, memoryStatusOutput, error) {
	state, err := s.runner.Snapshot(ctx)
	if err != nil {
		return nil, memoryStatusOutput{}, err
	}

	counts := make(map[string]int)
	for mt, n := range state.OccurrenceCounts() {
		counts[string(mt)] = n
	}
	return nil, memoryStatusOutput{
		TotalRuns:        state.TotalRuns,
		SuccessfulRuns:   state.SuccessfulRuns(),
		MistakesRecorded: len(state.Mistakes),
		OccurrenceCounts: counts,
		Rules:            state.Rules(),
	}, nil
}

func (s *Server) handleMemoryReset(ctx context.Context, _ *mcp.CallToolRequest, args memoryResetInput) (*mcp.CallToolResult, memoryResetOutput, error) {
	if !args.Confirm {
		return nil, memoryResetOutput{}, fmt.Errorf("%w: confirm=true is required to reset memory", errInvalidInput)
	}
	state, err := s.runner.Reset(ctx)
	if err != nil {
		return nil, memoryResetOutput{}, err
	}
	return nil, memoryResetOutput{TotalRuns: state.TotalRuns, Message: "Memory reset!"}, nil
}

func (s *Server) handleLearningReport(ctx context.Context, _ *mcp.CallToolRequest, args learningReportInput) (*mcp.CallToolResult, learningReportOutput, error) {
	format := args.Format
	if format == "" {
		format = insights.FormatText
	}

	state, err := s.runner.Snapshot(ctx)
	if err != nil {
		return nil, learningReportOutput{}, err
	}
	report := insights.Analyze(state)
	text, err := insights.FormatReport(report, format)
	if err != nil {
		return nil, learningReportOutput{}, fmt.Errorf("invalid format: %w", err)
	}

	return nil, learningReportOutput{
		Summary:       report.Summary,
		Statistics:    report.Statistics,
		Patterns:      report.Patterns,
		Format:        format,
		FormattedText: text,
	}, nil
}
