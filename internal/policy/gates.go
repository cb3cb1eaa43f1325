package policy

import "strings"

// Gate detects a single mistake type.
type Gate interface {
	// Type returns the mistake type this gate reports.
	Type() MistakeType

	// Evaluate returns a violation, or nil when the run passes the gate.
	Evaluate(in Input) *Violation
}

// RequiredToolsGate fires once when any required tool is missing.
type RequiredToolsGate struct{}

// Type implements Gate.
func (RequiredToolsGate) Type() MistakeType { return MistakeSkippedRequiredTool }

// Evaluate aggregates every missing tool into one violation.
func (RequiredToolsGate) Evaluate(in Input) *Violation {
	var missing []string
	for _, t := range in.Required {
		if !in.Trace.Contains(t) {
			missing = append(missing, t.Label())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Violation{
		Type:   MistakeSkippedRequiredTool,
		Detail: "missing: " + strings.Join(missing, ", "),
	}
}

// SequenceGate fires when the report precedes a required tool's last call,
// or when no report was generated at all.
type SequenceGate struct{}

// Type implements Gate.
func (SequenceGate) Type() MistakeType { return MistakeWrongToolSequence }

// Evaluate compares the first report position with each required tool's
// last position.
func (SequenceGate) Evaluate(in Input) *Violation {
	report := in.Trace.Index(ToolReport)
	if report < 0 {
		return &Violation{Type: MistakeWrongToolSequence, Detail: "report never generated"}
	}

	var pending []string
	for _, t := range in.Required {
		if in.Trace.LastIndex(t) > report {
			pending = append(pending, t.Label())
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return &Violation{
		Type:   MistakeWrongToolSequence,
		Detail: "report called before: " + strings.Join(pending, ", "),
	}
}

// UtilizationGate fires when a data tool ran but its output did not reach
// the report. Without a utilization signal the gate never fires.
type UtilizationGate struct{}

// Type implements Gate.
func (UtilizationGate) Type() MistakeType { return MistakeIgnoredToolOutputs }

// Evaluate lists invoked data tools absent from the utilization signal.
func (UtilizationGate) Evaluate(in Input) *Violation {
	if in.Utilization == nil || !in.Trace.Contains(ToolReport) {
		return nil
	}

	seen := make(map[Tool]bool)
	var ignored []string
	for _, t := range in.Trace {
		if t == ToolReport || !t.Valid() || seen[t] {
			continue
		}
		seen[t] = true
		if !in.Utilization.Used(t) {
			ignored = append(ignored, t.Label())
		}
	}
	if len(ignored) == 0 {
		return nil
	}
	return &Violation{
		Type:   MistakeIgnoredToolOutputs,
		Detail: "ignored: " + strings.Join(ignored, ", "),
	}
}
