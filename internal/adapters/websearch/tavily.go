// Package websearch provides the web search adapter behind the "web" knowledge source.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey is returned when searching without a Tavily key.
var ErrNoAPIKey = errors.New("tavily api key not configured")

// dockerDomains narrows results to sources that write about Dockerfiles.
var dockerDomains = []string{
	"docker.com", "docs.docker.com", "stackoverflow.com",
	"github.com", "medium.com", "dev.to",
}

const snippetLimit = 500

// TavilySearcher implements ports.WebSearcher using the Tavily search API.
type TavilySearcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewTavilySearcher creates a searcher; baseURL defaults to the public API.
func NewTavilySearcher(baseURL, apiKey string) *TavilySearcher {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilySearcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
	Detail  any            `json:"detail,omitempty"`
}

// Search runs query and renders the hits as a markdown list.
func (s *TavilySearcher) Search(ctx context.Context, query string, maxResults int) (string, error) {
	if s.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(tavilyRequest{
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     maxResults,
		IncludeDomains: dockerDomains,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Tavily: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Tavily returned status %d", resp.StatusCode)
	}

	var out tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	results := out.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return formatResults(results), nil
}

// formatResults renders results as numbered markdown sections.
func formatResults(results []tavilyResult) string {
	if len(results) == 0 {
		return "No web results found."
	}

	sections := make([]string, 0, len(results))
	for i, r := range results {
		var sb strings.Builder
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, strings.TrimSpace(r.Title))
		if r.URL != "" {
			fmt.Fprintf(&sb, "**Source**: %s\n", r.URL)
		}
		if snippet := truncate(strings.Join(strings.Fields(r.Content), " "), snippetLimit); snippet != "" {
			fmt.Fprintf(&sb, "**Summary**: %s\n", snippet)
		}
		sections = append(sections, strings.TrimRight(sb.String(), "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "..."
}
