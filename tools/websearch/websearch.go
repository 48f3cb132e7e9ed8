// Package websearch provides the web-search tool backed by the
// DuckDuckGo instant answer API. No API key required.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	luna "github.com/lunasparkai/luna"
)

// Name is the registry name of the search tool.
const Name = "web_search"

const defaultBaseURL = "https://api.duckduckgo.com"

// maxResults bounds how many related topics end up in the summary.
const maxResults = 5

var spec = luna.ToolDefinition{
	Name:        Name,
	Description: "Search the web and return a short summary of what was found.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "The search query"
			}
		},
		"required": ["query"]
	}`),
}

// Tool queries the instant answer API.
type Tool struct {
	baseURL string
	client  *http.Client
}

// Option configures a Tool.
type Option func(*Tool)

// WithBaseURL overrides the search service URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(t *Tool) { t.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) { t.client = c }
}

// New creates the search tool.
func New(opts ...Option) *Tool {
	t := &Tool{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Spec returns the function-calling definition.
func (t *Tool) Spec() luna.ToolDefinition { return spec }

type instantAnswer struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Execute runs the search and assembles a compact textual summary.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (luna.ToolResult, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return luna.ToolResult{}, fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return luna.ToolResult{}, fmt.Errorf("invalid parameters: query is required")
	}

	reqURL := t.baseURL + "/?" + url.Values{
		"q":           {in.Query},
		"format":      {"json"},
		"no_redirect": {"1"},
		"no_html":     {"1"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("search service network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return luna.ToolResult{}, &luna.ErrHTTP{Status: resp.StatusCode, Body: resp.Status}
	}

	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return luna.ToolResult{}, fmt.Errorf("search service returned invalid data: %w", err)
	}

	summary := summarize(in.Query, ia)
	if summary == "" {
		return luna.ToolResult{}, fmt.Errorf("no results found for %q", in.Query)
	}
	return luna.ToolResult{Content: summary}, nil
}

func summarize(query string, ia instantAnswer) string {
	var parts []string
	if ia.Answer != "" {
		parts = append(parts, ia.Answer)
	}
	if ia.AbstractText != "" {
		parts = append(parts, ia.AbstractText)
	}
	count := 0
	for _, rt := range ia.RelatedTopics {
		if rt.Text == "" || count >= maxResults {
			continue
		}
		parts = append(parts, "- "+rt.Text)
		count++
	}
	if len(parts) == 0 {
		return ""
	}
	return "Search results for \"" + query + "\":\n" + strings.Join(parts, "\n")
}
