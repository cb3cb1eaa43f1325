package agent

import (
	"context"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Request is the directive-shaped input for one run.
type Request struct {
	Query           string  `json:"query"`
	InstructionText string  `json:"instruction_text"`
	Temperature     float64 `json:"temperature"`
	RunNumber       int     `json:"run_number"`
	Variant         string  `json:"variant,omitempty"`
	Enforced        bool    `json:"enforced"`
}

// Result is what execution observed. ReportText is empty when the report
// tool never ran.
type Result struct {
	ToolsCalled []string            `json:"tools_called"`
	ReportText  string              `json:"report_text,omitempty"`
	Utilization *policy.Utilization `json:"utilization,omitempty"`
	Outputs     map[string]string   `json:"outputs,omitempty"`
}

// Reported reports whether a report was produced.
func (r *Result) Reported() bool {
	return r != nil && policy.TraceFromStrings(r.ToolsCalled).Contains(policy.ToolReport)
}

// Executor runs the agent for one request. Any error means no trace was
// produced.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (*Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
