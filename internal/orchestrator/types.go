package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/directive"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// RunState is a step of the per-run state machine.
type RunState string

const (
	StateInit           RunState = "INIT"
	StateDirectiveBuilt RunState = "DIRECTIVE_BUILT"
	StateExecuted       RunState = "EXECUTED"
	StateChecked        RunState = "CHECKED"
	StateRecorded       RunState = "RECORDED"
	StatePersisted      RunState = "PERSISTED"
	StateRunFailed      RunState = "RUN_FAILED"
)

// Terminal reports whether no transition leaves s.
func (s RunState) Terminal() bool {
	return s == StatePersisted || s == StateRunFailed
}

// ErrEmptyQuery is returned when Run is called without a query.
var ErrEmptyQuery = errors.New("query is required")

// ExecutionError means the agent produced no trace. Nothing was recorded.
type ExecutionError struct {
	RunNumber int
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent execution failed (run %d): %v", e.RunNumber, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Progress is reported on every state transition.
type Progress struct {
	RunNumber int      `json:"run_number"`
	State     RunState `json:"state"`
	Message   string   `json:"message,omitempty"`
}

// ProgressCallback receives progress updates. It runs under the run lock
// and must not call back into the orchestrator.
type ProgressCallback func(Progress)

// Outcome is the result of a run that completed execution.
type Outcome struct {
	Record       memory.RunRecord    `json:"record"`
	Violations   []policy.Violation  `json:"violations"`
	LearnedRules []memory.Rule       `json:"learned_rules,omitempty"`
	Directive    directive.Directive `json:"directive"`
	ReportText   string              `json:"report_text,omitempty"`
	State        RunState            `json:"state"`
	Persisted    bool                `json:"persisted"`
}

// Success reports whether the run had no policy violations.
func (o *Outcome) Success() bool {
	return o != nil && o.Record.Success
}

// Summary is the one-line user message for the outcome.
func (o *Outcome) Summary() string {
	if o.Success() {
		return fmt.Sprintf("run %d succeeded", o.Record.RunNumber)
	}
	types := make([]string, 0, len(o.Violations))
	for _, v := range o.Violations {
		types = append(types, string(v.Type))
	}
	return fmt.Sprintf("run failed — policy violation: %s", strings.Join(types, ", "))
}
