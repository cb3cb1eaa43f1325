package policy

// Checker runs every gate over a trace.
type Checker struct {
	required []Tool
	gates    []Gate
}

// NewChecker returns a checker for the standard required tool set.
func NewChecker() *Checker {
	return NewCheckerWithRequired(RequiredTools())
}

// NewCheckerWithRequired returns a checker for an explicit required set.
func NewCheckerWithRequired(required []Tool) *Checker {
	req := make([]Tool, len(required))
	copy(req, required)
	return &Checker{
		required: req,
		gates:    []Gate{RequiredToolsGate{}, SequenceGate{}, UtilizationGate{}},
	}
}

// Required returns a copy of the required tool set.
func (c *Checker) Required() []Tool {
	out := make([]Tool, len(c.required))
	copy(out, c.required)
	return out
}

// Check classifies trace. Violations come back in mistake-type order with
// at most one per type. utilization may be nil.
func (c *Checker) Check(trace Trace, utilization *Utilization) []Violation {
	in := Input{Trace: trace, Required: c.required, Utilization: utilization}

	violations := make([]Violation, 0, len(c.gates))
	for _, g := range c.gates {
		if v := g.Evaluate(in); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}
