package insights

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/learning"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// buildState replays runs through the inducer; an empty run is a success.
func buildState(t *testing.T, runs ...[]policy.MistakeType) *memory.State {
	t.Helper()
	inducer := learning.NewInducer(nil)
	state := memory.NewState()
	for _, types := range runs {
		n := state.NextRunNumber()
		violations := make([]policy.Violation, len(types))
		for i, mt := range types {
			violations[i] = policy.Violation{Type: mt, Detail: "detail"}
		}
		next, _, err := inducer.Observe(state, n, violations)
		require.NoError(t, err)
		require.NoError(t, next.AppendRun(memory.RunRecord{
			RunNumber:  n,
			Timestamp:  time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			Query:      "NVIDIA",
			ToolsUsed:  []string{"search_company_overview", "generate_report"},
			Success:    len(types) == 0,
			Violations: policy.Types(violations),
		}))
		state = next
	}
	require.NoError(t, state.Validate())
	return state
}

var (
	skipped  = []policy.MistakeType{policy.MistakeSkippedRequiredTool}
	sequence = []policy.MistakeType{policy.MistakeWrongToolSequence, policy.MistakeIgnoredToolOutputs}
	none     = []policy.MistakeType{}
)

func TestAnalyze_Empty(t *testing.T) {
	report := Analyze(nil)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 0, report.Statistics.TotalRuns)
	assert.Equal(t, 0.0, report.Statistics.SuccessRate)
	assert.Nil(t, report.Improvement)
	assert.Empty(t, report.MistakeFrequency)
	assert.Empty(t, report.Patterns)
	assert.Empty(t, report.Insights)
	assert.Equal(t, []string{"Run a query to start collecting learning data"}, report.Recommendations)
	assert.Equal(t, "Analyzed 0 runs.", report.Summary)
}

func TestAnalyze_LearningCurve(t *testing.T) {
	state := buildState(t, sequence, skipped, skipped, none, none)
	report := Analyze(state)

	stats := report.Statistics
	assert.Equal(t, 5, stats.TotalRuns)
	assert.Equal(t, 2, stats.SuccessfulRuns)
	assert.Equal(t, 3, stats.FailedRuns)
	assert.InDelta(t, 0.4, stats.SuccessRate, 1e-9)
	assert.Equal(t, 4, stats.MistakesRecorded)
	assert.Equal(t, 3, stats.UniqueMistakeTypes)
	assert.Equal(t, 1, stats.RulesLearned)

	require.NotNil(t, report.Improvement)
	assert.InDelta(t, 100.0, *report.Improvement, 1e-9)

	assert.Equal(t, []float64{0, 0, 0, 0.25, 0.4}, report.SuccessSeries)

	assert.Equal(t, []MistakeCount{
		{Type: policy.MistakeSkippedRequiredTool, Count: 2, RuleLearned: true, Remaining: 0},
		{Type: policy.MistakeWrongToolSequence, Count: 1, Remaining: 1},
		{Type: policy.MistakeIgnoredToolOutputs, Count: 1, Remaining: 1},
	}, report.MistakeFrequency)

	assert.Equal(t, []string{"Repeated 2x: skipped_required_tool", "Learned 1 rules"}, report.Patterns)
	assert.Contains(t, report.Recommendations, "1 more 'wrong_tool_sequence' mistake(s) will create a rule")

	titles := make([]string, 0, len(report.Insights))
	for _, i := range report.Insights {
		titles = append(titles, i.Title)
	}
	assert.Contains(t, titles, "Improvement Opportunity")
	assert.Contains(t, titles, "Learning Is Working")
	assert.Contains(t, titles, "Rules Enforced")

	assert.Equal(t, "Analyzed 5 runs with 40% success rate. Recorded 4 mistakes across 3 types. Learned 1 rules.", report.Summary)
}

func TestAnalyze_ImprovementNeedsFourRuns(t *testing.T) {
	report := Analyze(buildState(t, skipped, none, none))
	assert.Nil(t, report.Improvement)
	assert.Contains(t, report.Recommendations, "Run at least 4 queries to measure improvement")
}

func TestAnalyze_Decline(t *testing.T) {
	report := Analyze(buildState(t, none, none, skipped, sequence))

	require.NotNil(t, report.Improvement)
	assert.InDelta(t, -100.0, *report.Improvement, 1e-9)
	assert.Contains(t, report.Recommendations, "Review recent run traces; learned rules are not preventing failures")
}

func TestAnalyze_DoesNotMutate(t *testing.T) {
	state := buildState(t, skipped, skipped)
	before := state.Clone()

	report := Analyze(state)
	report.History[0].Violations[0] = policy.MistakeWrongToolSequence
	report.Rules[0].ID = "changed"

	assert.Equal(t, before, state)
}

func TestFormatReport(t *testing.T) {
	report := Analyze(buildState(t, skipped, skipped, none, none))

	text, err := FormatReport(report, "")
	require.NoError(t, err)
	assert.Contains(t, text, "LEARNING REPORT")
	assert.Contains(t, text, "Success Rate: 50% (2/4 runs)")
	assert.Contains(t, text, "Improvement: +100% (recent vs early runs)")
	assert.Contains(t, text, "skipped_required_tool: 2x rule created")
	assert.Contains(t, text, "Repeated 2x: skipped_required_tool")

	md, err := FormatReport(report, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, md, "# Learning Report")
	assert.Contains(t, md, "| skipped_required_tool | 2 | rule created |")
	assert.Contains(t, md, "**must_use_all_required_tools** (run 2)")
	assert.Contains(t, md, "| 3 | NVIDIA | yes | 2 | none |")

	js, err := FormatReport(report, FormatJSON)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.Equal(t, report.Statistics, decoded.Statistics)

	_, err = FormatReport(report, "yaml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
