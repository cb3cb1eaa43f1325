// Package insights summarizes learning progress from persisted memory.
//
// A Report answers whether the agent is getting better: success rate,
// recent versus early success, which mistakes recur, and which rules have
// been learned from them.
package insights

import (
	"time"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Report formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Report is a point-in-time view of learning progress.
type Report struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Statistics Statistics `json:"statistics"`

	// Improvement is recent success minus early success, in percentage
	// points. Nil until there are enough runs to compare.
	Improvement *float64 `json:"improvement,omitempty"`

	MistakeFrequency []MistakeCount `json:"mistake_frequency"`

	// SuccessSeries[i] is the cumulative success rate after run i+1.
	SuccessSeries []float64 `json:"success_series"`

	Patterns        []string      `json:"patterns"`
	Rules           []memory.Rule `json:"rules"`
	History         []HistoryRow  `json:"history"`
	Insights        []Insight     `json:"insights"`
	Recommendations []string      `json:"recommendations"`
	Summary         string        `json:"summary"`
}

// Statistics holds headline counts.
type Statistics struct {
	TotalRuns          int     `json:"total_runs"`
	SuccessfulRuns     int     `json:"successful_runs"`
	FailedRuns         int     `json:"failed_runs"`
	SuccessRate        float64 `json:"success_rate"`
	MistakesRecorded   int     `json:"mistakes_recorded"`
	UniqueMistakeTypes int     `json:"unique_mistake_types"`
	RulesLearned       int     `json:"rules_learned"`
}

// MistakeCount is how often one mistake type has occurred.
type MistakeCount struct {
	Type        policy.MistakeType `json:"mistake_type"`
	Count       int                `json:"count"`
	RuleLearned bool               `json:"rule_learned"`
	// Remaining is how many more occurrences create a rule.
	Remaining int `json:"remaining"`
}

// HistoryRow is one line of the run history table.
type HistoryRow struct {
	Run        int                  `json:"run"`
	Query      string               `json:"query"`
	Success    bool                 `json:"success"`
	ToolsUsed  int                  `json:"tools_used"`
	Variant    string               `json:"variant,omitempty"`
	Violations []policy.MistakeType `json:"violations"`
}

// Insight is a derived observation.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
