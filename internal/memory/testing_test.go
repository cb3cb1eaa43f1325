package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// buildState produces a valid state with one run per violation set.
func buildState(t *testing.T, runs ...[]policy.MistakeType) *State {
	t.Helper()
	s := NewState()
	for _, violations := range runs {
		n := s.NextRunNumber()
		for _, v := range violations {
			s.Mistakes = append(s.Mistakes, MistakeRecord{
				RunNumber:   n,
				MistakeType: v,
				Explanation: "detail for " + string(v),
				Occurred:    s.OccurrenceCount(v) + 1,
			})
		}
		require.NoError(t, s.AppendRun(RunRecord{
			RunNumber:     n,
			RunID:         "run-id",
			Timestamp:     time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC),
			Query:         "NVIDIA",
			ToolsUsed:     []string{"search_company_overview", "generate_report"},
			Success:       len(violations) == 0,
			Violations:    violations,
			PromptVariant: "Speed",
		}))
	}
	return s
}
