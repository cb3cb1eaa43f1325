package policy

// Tool identifies one tool in the closed research vocabulary.
type Tool string

const (
	ToolOverview  Tool = "search_company_overview"
	ToolPrice     Tool = "search_stock_price"
	ToolNews      Tool = "search_recent_news"
	ToolMetrics   Tool = "search_financial_metrics"
	ToolSentiment Tool = "analyze_sentiment"
	ToolReport    Tool = "generate_report"
)

var labels = map[Tool]string{
	ToolOverview:  "overview",
	ToolPrice:     "price",
	ToolNews:      "news",
	ToolMetrics:   "metrics",
	ToolSentiment: "sentiment",
	ToolReport:    "report",
}

// AllTools returns the vocabulary in canonical order.
func AllTools() []Tool {
	return []Tool{ToolOverview, ToolPrice, ToolNews, ToolMetrics, ToolSentiment, ToolReport}
}

// RequiredTools returns the tools every successful trace must contain
// before the report, in canonical order. A fresh slice is returned on every
// call.
func RequiredTools() []Tool {
	return []Tool{ToolOverview, ToolPrice, ToolNews, ToolMetrics}
}

// Valid reports whether t belongs to the vocabulary.
func (t Tool) Valid() bool {
	_, ok := labels[t]
	return ok
}

// Label returns the short name used in violation details.
func (t Tool) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// ParseTool converts a raw identifier into a Tool.
func ParseTool(s string) (Tool, bool) {
	t := Tool(s)
	return t, t.Valid()
}

// Trace is the ordered list of tools invoked during one run.
type Trace []Tool

// TraceFromStrings converts raw identifiers into a Trace, keeping unknown
// names so that they count as neither required tools nor the report.
func TraceFromStrings(names []string) Trace {
	trace := make(Trace, len(names))
	for i, n := range names {
		trace[i] = Tool(n)
	}
	return trace
}

// Strings returns the raw identifiers of the trace.
func (tr Trace) Strings() []string {
	out := make([]string, len(tr))
	for i, t := range tr {
		out[i] = string(t)
	}
	return out
}

// Index returns the first position of t, or -1.
func (tr Trace) Index(t Tool) int {
	for i, got := range tr {
		if got == t {
			return i
		}
	}
	return -1
}

// LastIndex returns the last position of t, or -1.
func (tr Trace) LastIndex(t Tool) int {
	for i := len(tr) - 1; i >= 0; i-- {
		if tr[i] == t {
			return i
		}
	}
	return -1
}

// Contains reports whether t appears in the trace.
func (tr Trace) Contains(t Tool) bool {
	return tr.Index(t) >= 0
}
