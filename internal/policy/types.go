package policy

import "fmt"

// MistakeType is the closed enumeration of policy violations.
type MistakeType string

const (
	MistakeSkippedRequiredTool MistakeType = "skipped_required_tool"
	MistakeWrongToolSequence   MistakeType = "wrong_tool_sequence"
	MistakeIgnoredToolOutputs  MistakeType = "ignored_tool_outputs"
)

// AllMistakeTypes returns the enumeration in its canonical order.
func AllMistakeTypes() []MistakeType {
	return []MistakeType{MistakeSkippedRequiredTool, MistakeWrongToolSequence, MistakeIgnoredToolOutputs}
}

// Valid reports whether m is a known mistake type.
func (m MistakeType) Valid() bool {
	switch m {
	case MistakeSkippedRequiredTool, MistakeWrongToolSequence, MistakeIgnoredToolOutputs:
		return true
	}
	return false
}

// ParseMistakeType converts a persisted string into a MistakeType.
func ParseMistakeType(s string) (MistakeType, error) {
	m := MistakeType(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mistake type %q", s)
	}
	return m, nil
}

// Violation is one classified mistake in a completed run. It is an outcome,
// not an error.
type Violation struct {
	Type   MistakeType `json:"mistake_type"`
	Detail string      `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (%s)", v.Type, v.Detail)
}

// Utilization is the report step's account of which tool outputs actually
// reached the report. A nil *Utilization means the signal is unavailable.
type Utilization struct {
	Sources []Tool `json:"sources"`
}

// Used reports whether t's output was handed to the report.
func (u *Utilization) Used(t Tool) bool {
	if u == nil {
		return false
	}
	for _, s := range u.Sources {
		if s == t {
			return true
		}
	}
	return false
}

// Input is everything a Gate needs to classify one run.
type Input struct {
	Trace       Trace
	Required    []Tool
	Utilization *Utilization
}

// Types extracts the mistake types of violations, preserving order.
func Types(violations []Violation) []MistakeType {
	out := make([]MistakeType, len(violations))
	for i, v := range violations {
		out[i] = v.Type
	}
	return out
}

// Succeeded reports whether a run with these violations counts as a success.
func Succeeded(violations []Violation) bool {
	return len(violations) == 0
}
