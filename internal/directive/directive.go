// Package directive projects learned rules into the instruction text and
// sampling temperature handed to the agent for one run.
package directive

import (
	"strings"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
)

// Sampling temperatures for the two phases.
const (
	LearningTemperature = 0.4
	EnforcedTemperature = 0.0
)

// Variant names. The weak ones bias the agent toward a specific mistake.
const (
	VariantReportEarly = "Report-Early"
	VariantNewsSkipper = "News-Skipper"
	VariantSpeed       = "Speed"
	VariantMinimalist  = "Minimalist"
	VariantStrong      = "Strong"
)

// Variant is a named baseline prompt.
type Variant struct {
	Name   string
	Prompt string
}

// Rotation picks the baseline prompt while no rules exist.
type Rotation interface {
	Baseline(runNumber int) Variant
}

// WeakRotation cycles through the four weak variants by run number.
type WeakRotation struct{}

var weakVariants = []Variant{
	{Name: VariantReportEarly, Prompt: reportEarlyPrompt},
	{Name: VariantNewsSkipper, Prompt: newsSkipperPrompt},
	{Name: VariantSpeed, Prompt: speedPrompt},
	{Name: VariantMinimalist, Prompt: minimalistPrompt},
}

// Baseline implements Rotation. Run 1 gets the first variant.
func (WeakRotation) Baseline(runNumber int) Variant {
	idx := (runNumber - 1) % len(weakVariants)
	if idx < 0 {
		idx += len(weakVariants)
	}
	return weakVariants[idx]
}

// FixedRotation always returns the same variant.
type FixedRotation Variant

// Baseline implements Rotation.
func (f FixedRotation) Baseline(int) Variant { return Variant(f) }

// Directive is the behavior-shaping bundle for one run.
type Directive struct {
	InstructionText string   `json:"instruction_text"`
	Temperature     float64  `json:"temperature"`
	Variant         string   `json:"variant"`
	Enforced        bool     `json:"enforced"`
	RuleIDs         []string `json:"rule_ids,omitempty"`
}

// Applier builds directives.
type Applier struct {
	rotation Rotation
}

// NewApplier returns an applier using rotation for the learning phase. A
// nil rotation means WeakRotation.
func NewApplier(rotation Rotation) *Applier {
	if rotation == nil {
		rotation = WeakRotation{}
	}
	return &Applier{rotation: rotation}
}

// Build returns the directive for runNumber given the learned rules in
// creation order.
func (a *Applier) Build(runNumber int, rules []memory.Rule) Directive {
	if len(rules) == 0 {
		v := a.rotation.Baseline(runNumber)
		return Directive{
			InstructionText: v.Prompt,
			Temperature:     LearningTemperature,
			Variant:         v.Name,
		}
	}

	var b strings.Builder
	b.WriteString(strongBasePrompt)
	b.WriteString("\n\n")
	b.WriteString(rulesHeader)
	b.WriteString("\n")

	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		b.WriteString(RuleLine(r))
		b.WriteString("\n")
		ids = append(ids, r.ID)
	}
	b.WriteString("\n")
	b.WriteString(rulesFooter)

	return Directive{
		InstructionText: b.String(),
		Temperature:     EnforcedTemperature,
		Variant:         VariantStrong,
		Enforced:        true,
		RuleIDs:         ids,
	}
}

// RuleLine renders one rule as a single prompt line.
func RuleLine(r memory.Rule) string {
	if r.Description == "" {
		return "- " + r.Constraint
	}
	return "- " + r.Description + " -> " + r.Constraint
}
