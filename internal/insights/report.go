package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/learning"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// ErrUnknownFormat is returned by FormatReport for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// improvementWindow is how many runs from each end are compared.
const improvementWindow = 2

// Analyze builds a report from state. state is not modified.
func Analyze(state *memory.State) *Report {
	if state == nil {
		state = memory.NewState()
	}

	report := &Report{
		ID:            uuid.New().String(),
		GeneratedAt:   time.Now().UTC(),
		Statistics:    calculateStatistics(state),
		SuccessSeries: successSeries(state.RunHistory),
		Rules:         state.Rules(),
	}
	report.Improvement = improvement(state.RunHistory)
	report.MistakeFrequency = mistakeFrequency(state)
	report.Patterns = patterns(report.MistakeFrequency, len(report.Rules))
	report.History = history(state.RunHistory)
	report.Insights = generateInsights(report)
	report.Recommendations = generateRecommendations(report)
	report.Summary = generateSummary(report)

	return report
}

func calculateStatistics(state *memory.State) Statistics {
	stats := Statistics{
		TotalRuns:        state.TotalRuns,
		SuccessfulRuns:   state.SuccessfulRuns(),
		MistakesRecorded: len(state.Mistakes),
		RulesLearned:     len(state.LearnedRules),
	}
	stats.FailedRuns = stats.TotalRuns - stats.SuccessfulRuns
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRuns) / float64(stats.TotalRuns)
	}
	for _, n := range state.OccurrenceCounts() {
		if n > 0 {
			stats.UniqueMistakeTypes++
		}
	}
	return stats
}

func successSeries(runs []memory.RunRecord) []float64 {
	series := make([]float64, 0, len(runs))
	ok := 0
	for i, r := range runs {
		if r.Success {
			ok++
		}
		series = append(series, float64(ok)/float64(i+1))
	}
	return series
}

// improvement compares the last two runs with the first two.
func improvement(runs []memory.RunRecord) *float64 {
	if len(runs) < 2*improvementWindow {
		return nil
	}
	early := rate(runs[:improvementWindow])
	recent := rate(runs[len(runs)-improvementWindow:])
	delta := (recent - early) * 100
	return &delta
}

func rate(runs []memory.RunRecord) float64 {
	ok := 0
	for _, r := range runs {
		if r.Success {
			ok++
		}
	}
	return float64(ok) / float64(len(runs))
}

// mistakeFrequency lists observed types in enumeration order.
func mistakeFrequency(state *memory.State) []MistakeCount {
	counts := state.OccurrenceCounts()
	out := make([]MistakeCount, 0, len(counts))
	for _, mt := range policy.AllMistakeTypes() {
		n := counts[mt]
		if n == 0 {
			continue
		}
		_, learned := state.RuleFor(mt)
		out = append(out, MistakeCount{
			Type:        mt,
			Count:       n,
			RuleLearned: learned,
			Remaining:   learning.Remaining(state, mt),
		})
	}
	return out
}

func patterns(freq []MistakeCount, rules int) []string {
	out := []string{}
	for _, m := range freq {
		if m.Count >= learning.Threshold {
			out = append(out, fmt.Sprintf("Repeated %dx: %s", m.Count, m.Type))
		}
	}
	if rules > 0 {
		out = append(out, fmt.Sprintf("Learned %d rules", rules))
	}
	return out
}

func history(runs []memory.RunRecord) []HistoryRow {
	rows := make([]HistoryRow, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, HistoryRow{
			Run:        r.RunNumber,
			Query:      r.Query,
			Success:    r.Success,
			ToolsUsed:  len(r.ToolsUsed),
			Variant:    r.PromptVariant,
			Violations: append([]policy.MistakeType{}, r.Violations...),
		})
	}
	return rows
}

func generateInsights(report *Report) []Insight {
	insights := []Insight{}
	stats := report.Statistics
	if stats.TotalRuns == 0 {
		return insights
	}

	if stats.SuccessRate >= 0.7 {
		insights = append(insights, Insight{
			Title:       "High Success Rate",
			Description: fmt.Sprintf("%.0f%% of runs followed the tool policy", stats.SuccessRate*100),
			Category:    "performance",
		})
	} else if stats.SuccessRate < 0.5 {
		insights = append(insights, Insight{
			Title:       "Improvement Opportunity",
			Description: fmt.Sprintf("%.0f%% success rate; most runs still break the tool policy", stats.SuccessRate*100),
			Category:    "performance",
		})
	}

	if report.Improvement != nil {
		switch {
		case *report.Improvement > 0:
			insights = append(insights, Insight{
				Title:       "Learning Is Working",
				Description: fmt.Sprintf("Recent runs succeed %.0f points more often than the first runs", *report.Improvement),
				Category:    "trend",
			})
		case *report.Improvement < 0:
			insights = append(insights, Insight{
				Title:       "Attention Needed",
				Description: fmt.Sprintf("Recent runs succeed %.0f points less often than the first runs", -*report.Improvement),
				Category:    "trend",
			})
		}
	}

	var top *MistakeCount
	for i := range report.MistakeFrequency {
		if top == nil || report.MistakeFrequency[i].Count > top.Count {
			top = &report.MistakeFrequency[i]
		}
	}
	if top != nil {
		insights = append(insights, Insight{
			Title:       "Most Common Mistake",
			Description: fmt.Sprintf("'%s' occurred %d times", top.Type, top.Count),
			Category:    "mistakes",
		})
	}

	if stats.RulesLearned > 0 {
		insights = append(insights, Insight{
			Title:       "Rules Enforced",
			Description: fmt.Sprintf("%d learned rule(s) now shape every prompt at temperature 0.0", stats.RulesLearned),
			Category:    "learning",
		})
	}

	return insights
}

func generateRecommendations(report *Report) []string {
	recs := []string{}
	stats := report.Statistics

	switch {
	case stats.TotalRuns == 0:
		recs = append(recs, "Run a query to start collecting learning data")
	case stats.TotalRuns < 2*improvementWindow:
		recs = append(recs, fmt.Sprintf("Run at least %d queries to measure improvement", 2*improvementWindow))
	}

	for _, m := range report.MistakeFrequency {
		if !m.RuleLearned && m.Remaining > 0 {
			recs = append(recs, fmt.Sprintf("%d more '%s' mistake(s) will create a rule", m.Remaining, m.Type))
		}
	}

	if report.Improvement != nil && *report.Improvement < 0 {
		recs = append(recs, "Review recent run traces; learned rules are not preventing failures")
	}

	return recs
}

func generateSummary(report *Report) string {
	stats := report.Statistics
	parts := []string{fmt.Sprintf("Analyzed %d runs", stats.TotalRuns)}
	if stats.TotalRuns > 0 {
		parts[0] += fmt.Sprintf(" with %.0f%% success rate", stats.SuccessRate*100)
	}
	if stats.MistakesRecorded > 0 {
		parts = append(parts, fmt.Sprintf("Recorded %d mistakes across %d types", stats.MistakesRecorded, stats.UniqueMistakeTypes))
	}
	if stats.RulesLearned > 0 {
		parts = append(parts, fmt.Sprintf("Learned %d rules", stats.RulesLearned))
	}
	return strings.Join(parts, ". ") + "."
}

// FormatReport renders report as text, markdown or JSON. An empty format
// means text.
func FormatReport(report *Report, format string) (string, error) {
	switch format {
	case "", FormatText:
		return formatAsText(report), nil
	case FormatMarkdown:
		return formatAsMarkdown(report), nil
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal report: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func formatAsMarkdown(report *Report) string {
	var sb strings.Builder
	stats := report.Statistics

	sb.WriteString("# Learning Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(report.Summary + "\n\n")

	sb.WriteString("## Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- Total Runs: %d\n", stats.TotalRuns))
	sb.WriteString(fmt.Sprintf("- Success Rate: %.0f%% (%d/%d)\n", stats.SuccessRate*100, stats.SuccessfulRuns, stats.TotalRuns))
	if report.Improvement != nil {
		sb.WriteString(fmt.Sprintf("- Improvement: %+.0f%%\n", *report.Improvement))
	}
	sb.WriteString(fmt.Sprintf("- Mistakes Recorded: %d\n", stats.MistakesRecorded))
	sb.WriteString(fmt.Sprintf("- Learned Rules: %d\n\n", stats.RulesLearned))

	if len(report.MistakeFrequency) > 0 {
		sb.WriteString("## Mistake Frequency\n\n")
		sb.WriteString("| Mistake | Count | Rule |\n|---|---|---|\n")
		for _, m := range report.MistakeFrequency {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", m.Type, m.Count, ruleMark(m)))
		}
		sb.WriteString("\n")
	}

	if len(report.Rules) > 0 {
		sb.WriteString("## Learned Rules\n\n")
		for _, r := range report.Rules {
			sb.WriteString(fmt.Sprintf("- **%s** (run %d): %s -> %s\n", r.ID, r.CreatedAtRun, r.Description, r.Constraint))
		}
		sb.WriteString("\n")
	}

	if len(report.History) > 0 {
		sb.WriteString("## Run History\n\n")
		sb.WriteString("| Run | Query | Success | Tools | Mistakes |\n|---|---|---|---|---|\n")
		for _, h := range report.History {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %s |\n", h.Run, h.Query, successMark(h.Success), h.ToolsUsed, joinTypes(h.Violations)))
		}
		sb.WriteString("\n")
	}

	if len(report.Insights) > 0 {
		sb.WriteString("## Key Insights\n\n")
		for _, insight := range report.Insights {
			sb.WriteString(fmt.Sprintf("### %s\n\n", insight.Title))
			sb.WriteString(insight.Description + "\n\n")
		}
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
	}

	return sb.String()
}

func formatAsText(report *Report) string {
	var sb strings.Builder
	stats := report.Statistics
	rule := strings.Repeat("-", 20) + "\n"

	sb.WriteString("LEARNING REPORT\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("SUMMARY\n" + rule)
	sb.WriteString(report.Summary + "\n\n")

	sb.WriteString("STATISTICS\n" + rule)
	sb.WriteString(fmt.Sprintf("Total Runs: %d\n", stats.TotalRuns))
	sb.WriteString(fmt.Sprintf("Success Rate: %.0f%% (%d/%d runs)\n", stats.SuccessRate*100, stats.SuccessfulRuns, stats.TotalRuns))
	if report.Improvement != nil {
		sb.WriteString(fmt.Sprintf("Improvement: %+.0f%% (recent vs early runs)\n", *report.Improvement))
	}
	sb.WriteString(fmt.Sprintf("Mistakes Recorded: %d\n", stats.MistakesRecorded))
	sb.WriteString(fmt.Sprintf("Unique Mistake Types: %d\n", stats.UniqueMistakeTypes))
	sb.WriteString(fmt.Sprintf("Learned Rules: %d\n\n", stats.RulesLearned))

	if len(report.MistakeFrequency) > 0 {
		sb.WriteString("MISTAKE FREQUENCY\n" + rule)
		for _, m := range report.MistakeFrequency {
			sb.WriteString(fmt.Sprintf("%s: %dx %s\n", m.Type, m.Count, ruleMark(m)))
		}
		sb.WriteString("\n")
	}

	if len(report.Patterns) > 0 {
		sb.WriteString("PATTERNS\n" + rule)
		for _, p := range report.Patterns {
			sb.WriteString(p + "\n")
		}
		sb.WriteString("\n")
	}

	if len(report.Insights) > 0 {
		sb.WriteString("KEY INSIGHTS\n" + rule)
		for i, insight := range report.Insights {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, insight.Title))
			sb.WriteString(fmt.Sprintf("   %s\n\n", insight.Description))
		}
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("RECOMMENDATIONS\n" + rule)
		for i, rec := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, rec))
		}
	}

	return sb.String()
}

func ruleMark(m MistakeCount) string {
	if m.RuleLearned {
		return "rule created"
	}
	return fmt.Sprintf("%d to rule", m.Remaining)
}

func successMark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func joinTypes(types []policy.MistakeType) string {
	if len(types) == 0 {
		return "none"
	}
	s := make([]string, len(types))
	for i, t := range types {
		s[i] = string(t)
	}
	return strings.Join(s, ", ")
}
