// Package learning turns repeated policy violations into durable rules.
package learning

import (
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Template is the fixed rule shape for one mistake type.
type Template struct {
	ID            string
	Description   string
	Constraint    string
	RequiredTools []policy.Tool
}

var catalog = map[policy.MistakeType]Template{
	policy.MistakeSkippedRequiredTool: {
		ID:            "must_use_all_required_tools",
		Description:   "ALWAYS use: overview, price, news, AND financials before report",
		Constraint:    "Never skip financial_metrics - it's mandatory",
		RequiredTools: policy.RequiredTools(),
	},
	policy.MistakeWrongToolSequence: {
		ID:            "collect_before_generate",
		Description:   "MUST collect ALL data BEFORE calling generate_report",
		Constraint:    "generate_report must be the LAST tool called",
		RequiredTools: policy.RequiredTools(),
	},
	policy.MistakeIgnoredToolOutputs: {
		ID:            "use_collected_data",
		Description:   "Pass all collected tool outputs to generate_report",
		Constraint:    "no data should be marked as IGNORED",
		RequiredTools: policy.RequiredTools(),
	},
}

// TemplateFor returns the catalog entry for mt.
func TemplateFor(mt policy.MistakeType) (Template, bool) {
	t, ok := catalog[mt]
	return t, ok
}

// Rule instantiates the template for mt at run createdAt.
func (t Template) Rule(mt policy.MistakeType, createdAt int) memory.Rule {
	tools := make([]string, len(t.RequiredTools))
	for i, tool := range t.RequiredTools {
		tools[i] = string(tool)
	}
	return memory.Rule{
		ID:            t.ID,
		Description:   t.Description,
		Constraint:    t.Constraint,
		MistakeType:   mt,
		CreatedAtRun:  createdAt,
		RequiredTools: tools,
	}
}
