package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/policy"
)

// Markers a collected output may carry to show it was not really gathered.
const (
	MarkerIgnored      = "IGNORED"
	MarkerNotCollected = "NOT COLLECTED"
)

type researchQuery struct {
	query      string // formatted with the company
	maxResults int
	prefix     string
	limit      int // content characters kept; 0 means titles only
}

var research = map[policy.Tool]researchQuery{
	policy.ToolOverview: {query: "%s company overview business", maxResults: 2, prefix: "Overview: ", limit: 300},
	policy.ToolPrice:    {query: "%s stock price current today", maxResults: 2, prefix: "Stock Price Info: ", limit: 200},
	policy.ToolNews:     {query: "%s latest news recent", maxResults: 3, prefix: "Recent News:\n"},
	policy.ToolMetrics:  {query: "%s financial metrics revenue profit PE ratio", maxResults: 2, prefix: "Financial Metrics: ", limit: 250},
}

// Writer produces the LLM-backed tool outputs.
type Writer interface {
	Sentiment(ctx context.Context, news string) (string, error)
	Report(ctx context.Context, company string, collected map[policy.Tool]string) (string, error)
}

// Toolbox runs the research tools.
type Toolbox struct {
	search Searcher
	writer Writer
}

// NewToolbox returns a toolbox using search for data and writer for
// analysis.
func NewToolbox(search Searcher, writer Writer) *Toolbox {
	return &Toolbox{search: search, writer: writer}
}

// Research runs one of the four data tools for company.
func (tb *Toolbox) Research(ctx context.Context, tool policy.Tool, company string) (string, error) {
	rq, ok := research[tool]
	if !ok {
		return "", fmt.Errorf("%s is not a research tool", tool)
	}

	results, err := tb.search.Search(ctx, fmt.Sprintf(rq.query, company), rq.maxResults)
	if err != nil {
		return "", fmt.Errorf("%s: %w", tool, err)
	}
	if len(results) == 0 {
		return rq.prefix + "no results found", nil
	}

	if rq.limit == 0 {
		lines := make([]string, len(results))
		for i, r := range results {
			lines[i] = "- " + r.Title
		}
		return rq.prefix + strings.Join(lines, "\n"), nil
	}
	return rq.prefix + truncate(results[0].Content, rq.limit), nil
}

// Sentiment classifies collected news.
func (tb *Toolbox) Sentiment(ctx context.Context, news string) (string, error) {
	s, err := tb.writer.Sentiment(ctx, news)
	if err != nil {
		return "", fmt.Errorf("%s: %w", policy.ToolSentiment, err)
	}
	return "Sentiment Analysis: " + s, nil
}

// Report writes the recommendation from whatever has been collected.
func (tb *Toolbox) Report(ctx context.Context, company string, collected map[policy.Tool]string) (string, error) {
	r, err := tb.writer.Report(ctx, company, collected)
	if err != nil {
		return "", fmt.Errorf("%s: %w", policy.ToolReport, err)
	}
	return r, nil
}

// Utilized returns the tools whose outputs were usable input to the report.
// Outputs carrying an ignore marker do not count.
func Utilized(collected map[policy.Tool]string) *policy.Utilization {
	u := &policy.Utilization{Sources: []policy.Tool{}}
	for _, t := range policy.AllTools() {
		out, ok := collected[t]
		if !ok || t == policy.ToolReport {
			continue
		}
		if strings.Contains(out, MarkerIgnored) || strings.Contains(out, MarkerNotCollected) {
			continue
		}
		u.Sources = append(u.Sources, t)
	}
	return u
}

// LLMWriter writes sentiment and reports with a chat model.
type LLMWriter struct {
	llm Completer
}

// NewLLMWriter returns a writer backed by llm.
func NewLLMWriter(llm Completer) *LLMWriter {
	return &LLMWriter{llm: llm}
}

// Sentiment implements Writer.
func (w *LLMWriter) Sentiment(ctx context.Context, news string) (string, error) {
	prompt := "Analyze the sentiment of this news about a company:\n" + news +
		"\n\nRespond with only one word: Positive, Negative, or Neutral"
	return w.llm.Complete(ctx, prompt, 0)
}

// Report implements Writer.
func (w *LLMWriter) Report(ctx context.Context, company string, collected map[policy.Tool]string) (string, error) {
	return w.llm.Complete(ctx, ReportPrompt(company, collected), 0)
}

// ReportPrompt lays out collected data for the report writer. Missing
// inputs are marked NOT PROVIDED.
func ReportPrompt(company string, collected map[policy.Tool]string) string {
	get := func(t policy.Tool, missing string) string {
		if v, ok := collected[t]; ok {
			return v
		}
		return missing
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a brief investment analysis for %s based on:\n\n", company)
	b.WriteString(get(policy.ToolOverview, "NOT PROVIDED") + "\n")
	b.WriteString(get(policy.ToolPrice, "NOT PROVIDED") + "\n")
	b.WriteString(get(policy.ToolNews, "NOT PROVIDED") + "\n")
	b.WriteString(get(policy.ToolMetrics, "NOT PROVIDED") + "\n")
	b.WriteString(get(policy.ToolSentiment, "NOT PROVIDED (optional)") + "\n")
	b.WriteString("\nProvide:\n1. Brief Summary (2 sentences)\n2. Key Observation\n3. Simple Recommendation\n\nKeep it under 150 words.")
	return b.String()
}

// OfflineWriter produces deterministic analysis text.
type OfflineWriter struct{}

// Sentiment implements Writer.
func (OfflineWriter) Sentiment(ctx context.Context, news string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lower := strings.ToLower(news)
	switch {
	case strings.Contains(lower, "lawsuit"), strings.Contains(lower, "decline"), strings.Contains(lower, "miss"):
		return "Negative", nil
	case strings.Contains(lower, "results"), strings.Contains(lower, "expands"), strings.Contains(lower, "growth"):
		return "Positive", nil
	}
	return "Neutral", nil
}

// Report implements Writer.
func (OfflineWriter) Report(ctx context.Context, company string, collected map[policy.Tool]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var have, missing []string
	for _, t := range policy.RequiredTools() {
		if _, ok := collected[t]; ok {
			have = append(have, t.Label())
		} else {
			missing = append(missing, t.Label())
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "1. Summary: %s was reviewed using %s.", company, strings.Join(have, ", "))
	if len(missing) > 0 {
		fmt.Fprintf(&b, " Data NOT PROVIDED: %s.", strings.Join(missing, ", "))
	}
	b.WriteString("\n2. Key Observation: ")
	if s, ok := collected[policy.ToolSentiment]; ok {
		b.WriteString(s)
	} else {
		b.WriteString("no sentiment signal")
	}
	b.WriteString("\n3. Recommendation: ")
	if len(missing) == 0 {
		b.WriteString("Hold pending further review.")
	} else {
		b.WriteString("Insufficient data for a recommendation.")
	}
	return b.String(), nil
}
