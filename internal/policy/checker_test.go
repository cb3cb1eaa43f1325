package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trace(tools ...Tool) Trace { return Trace(tools) }

func TestChecker_ReportBeforeNewsAndMetrics(t *testing.T) {
	c := NewChecker()
	violations := c.Check(trace(ToolOverview, ToolPrice, ToolReport, ToolNews, ToolMetrics), nil)

	require.Len(t, violations, 1)
	assert.Equal(t, MistakeWrongToolSequence, violations[0].Type)
	assert.Equal(t, "report called before: news, metrics", violations[0].Detail)
	assert.False(t, Succeeded(violations))
}

func TestChecker_MissingNews(t *testing.T) {
	c := NewChecker()
	violations := c.Check(trace(ToolOverview, ToolMetrics, ToolPrice, ToolReport), nil)

	require.Len(t, violations, 1)
	assert.Equal(t, MistakeSkippedRequiredTool, violations[0].Type)
	assert.Equal(t, "missing: news", violations[0].Detail)
	assert.False(t, Succeeded(violations))
}

func TestChecker_FullTraceSucceeds(t *testing.T) {
	c := NewChecker()
	violations := c.Check(trace(ToolOverview, ToolPrice, ToolNews, ToolMetrics, ToolSentiment, ToolReport), nil)

	assert.Empty(t, violations)
	assert.True(t, Succeeded(violations))
}

func TestRequiredToolsGate_AggregatesMissing(t *testing.T) {
	tests := []struct {
		name   string
		trace  Trace
		detail string
	}{
		{"one missing", trace(ToolOverview, ToolPrice, ToolNews, ToolReport), "missing: metrics"},
		{"two missing", trace(ToolOverview, ToolPrice, ToolReport), "missing: news, metrics"},
		{"all missing", trace(ToolReport), "missing: overview, price, news, metrics"},
		{"empty trace", trace(), "missing: overview, price, news, metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := NewChecker().Check(tt.trace, nil)

			var skipped []Violation
			for _, v := range violations {
				if v.Type == MistakeSkippedRequiredTool {
					skipped = append(skipped, v)
				}
			}
			require.Len(t, skipped, 1, "exactly one aggregated violation")
			assert.Equal(t, tt.detail, skipped[0].Detail)
		})
	}
}

func TestSequenceGate(t *testing.T) {
	tests := []struct {
		name  string
		trace Trace
		fires bool
	}{
		{"report last", trace(ToolOverview, ToolPrice, ToolNews, ToolMetrics, ToolReport), false},
		{"report first", trace(ToolReport, ToolOverview, ToolPrice, ToolNews, ToolMetrics), true},
		{"required repeated after report", trace(ToolOverview, ToolPrice, ToolNews, ToolMetrics, ToolReport, ToolPrice), true},
		{"sentiment after report is fine", trace(ToolOverview, ToolPrice, ToolNews, ToolMetrics, ToolReport, ToolSentiment), false},
		{"missing tools do not count as pending", trace(ToolOverview, ToolReport), false},
		{"no report", trace(ToolOverview, ToolPrice, ToolNews, ToolMetrics), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := SequenceGate{}.Evaluate(Input{Trace: tt.trace, Required: RequiredTools()})
			if tt.fires {
				require.NotNil(t, v)
				assert.Equal(t, MistakeWrongToolSequence, v.Type)
			} else {
				assert.Nil(t, v)
			}
		})
	}
}

func TestSequenceGate_NoReportDetail(t *testing.T) {
	v := SequenceGate{}.Evaluate(Input{Trace: trace(ToolOverview), Required: RequiredTools()})
	require.NotNil(t, v)
	assert.Equal(t, "report never generated", v.Detail)
}

func TestUtilizationGate(t *testing.T) {
	full := trace(ToolOverview, ToolPrice, ToolNews, ToolMetrics, ToolReport)

	t.Run("no signal never fires", func(t *testing.T) {
		assert.Nil(t, UtilizationGate{}.Evaluate(Input{Trace: full, Required: RequiredTools()}))
	})

	t.Run("all used", func(t *testing.T) {
		u := &Utilization{Sources: []Tool{ToolOverview, ToolPrice, ToolNews, ToolMetrics}}
		assert.Nil(t, UtilizationGate{}.Evaluate(Input{Trace: full, Required: RequiredTools(), Utilization: u}))
	})

	t.Run("some ignored", func(t *testing.T) {
		u := &Utilization{Sources: []Tool{ToolOverview, ToolPrice}}
		v := UtilizationGate{}.Evaluate(Input{Trace: full, Required: RequiredTools(), Utilization: u})
		require.NotNil(t, v)
		assert.Equal(t, "ignored: news, metrics", v.Detail)
	})

	t.Run("no report means nothing to ignore", func(t *testing.T) {
		u := &Utilization{}
		assert.Nil(t, UtilizationGate{}.Evaluate(Input{Trace: trace(ToolOverview), Required: RequiredTools(), Utilization: u}))
	})
}

func TestChecker_OrderAndCardinality(t *testing.T) {
	c := NewChecker()
	u := &Utilization{Sources: []Tool{ToolOverview}}
	violations := c.Check(trace(ToolReport, ToolOverview, ToolPrice), u)

	assert.Equal(t, []MistakeType{MistakeSkippedRequiredTool, MistakeWrongToolSequence, MistakeIgnoredToolOutputs}, Types(violations))
}

func TestChecker_UnknownToolsIgnored(t *testing.T) {
	c := NewChecker()
	violations := c.Check(TraceFromStrings([]string{
		"search_company_overview", "search_weather", "search_stock_price",
		"search_recent_news", "search_financial_metrics", "generate_report",
	}), &Utilization{Sources: []Tool{ToolOverview, ToolPrice, ToolNews, ToolMetrics}})

	assert.Empty(t, violations)
}

func TestChecker_RequiredIsCopied(t *testing.T) {
	req := []Tool{ToolOverview}
	c := NewCheckerWithRequired(req)
	req[0] = ToolNews

	assert.Equal(t, []Tool{ToolOverview}, c.Required())
}

func TestTool(t *testing.T) {
	assert.Equal(t, "metrics", ToolMetrics.Label())
	assert.Equal(t, "custom", Tool("custom").Label())

	_, ok := ParseTool("generate_report")
	assert.True(t, ok)
	_, ok = ParseTool("nope")
	assert.False(t, ok)

	tr := trace(ToolPrice, ToolReport, ToolPrice)
	assert.Equal(t, 0, tr.Index(ToolPrice))
	assert.Equal(t, 2, tr.LastIndex(ToolPrice))
	assert.Equal(t, []string{"search_stock_price", "generate_report", "search_stock_price"}, tr.Strings())
}

func TestParseMistakeType(t *testing.T) {
	m, err := ParseMistakeType("wrong_tool_sequence")
	require.NoError(t, err)
	assert.Equal(t, MistakeWrongToolSequence, m)

	_, err = ParseMistakeType("execution_error")
	assert.Error(t, err)
}
