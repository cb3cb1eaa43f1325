package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/config"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// TavilySearch queries the Tavily search API.
type TavilySearch struct {
	baseURL    string
	apiKey     config.Secret
	maxResults int // per-query cap; 0 means none
	httpClient *http.Client
}

// NewTavilySearch returns a client for cfg.
func NewTavilySearch(cfg config.SearchConfig) (*TavilySearch, error) {
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("search api key required")
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &TavilySearch{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []SearchResult `json:"results"`
}

// Search implements Searcher.
func (t *TavilySearch) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if t.maxResults > 0 && (maxResults <= 0 || maxResults > t.maxResults) {
		maxResults = t.maxResults
	}
	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey.Value())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (%d): %s", resp.StatusCode, truncate(string(data), 200))
	}

	var out tavilyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Results, nil
}

// CannedSearch returns fixed research data shaped after the query.
type CannedSearch struct{}

// Search implements Searcher.
func (CannedSearch) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	company := strings.Fields(query)
	name := "The company"
	if len(company) > 0 {
		name = company[0]
	}

	var results []SearchResult
	switch {
	case strings.Contains(query, "overview"):
		results = []SearchResult{{Title: name + " overview", Content: name + " designs and sells products across several segments with a diversified customer base."}}
	case strings.Contains(query, "stock price"):
		results = []SearchResult{{Title: name + " quote", Content: name + " shares last traded near their 50-day moving average on average volume."}}
	case strings.Contains(query, "news"):
		results = []SearchResult{
			{Title: name + " announces quarterly results"},
			{Title: name + " expands partnership program"},
			{Title: "Analysts revisit " + name + " price targets"},
		}
	case strings.Contains(query, "financial metrics"):
		results = []SearchResult{{Title: name + " financials", Content: name + " reports growing revenue, stable margins and a moderate P/E ratio."}}
	default:
		results = []SearchResult{{Title: name, Content: "No specific data."}}
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
