// Package youtube provides the video playback tool. It resolves a search
// query to the first matching video on YouTube's results page.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	luna "github.com/lunasparkai/luna"
)

// Name is the registry name of the playback tool.
const Name = "play_youtube_video"

const defaultBaseURL = "https://www.youtube.com"

// maxPageBytes limits how much of the results page we scan.
const maxPageBytes = 1 << 20

var videoIDPattern = regexp.MustCompile(`"videoId":"([A-Za-z0-9_-]{11})"`)

var titlePattern = regexp.MustCompile(`"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`)

var spec = luna.ToolDefinition{
	Name:        Name,
	Description: "Find a YouTube video matching the query and return its URL for playback.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "What to search for, e.g. a song or video title"
			}
		},
		"required": ["query"]
	}`),
}

// Tool resolves search queries to video URLs.
type Tool struct {
	baseURL string
	client  *http.Client
}

// Option configures a Tool.
type Option func(*Tool)

// WithBaseURL overrides the YouTube URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(t *Tool) { t.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) { t.client = c }
}

// New creates the playback tool.
func New(opts ...Option) *Tool {
	t := &Tool{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Spec returns the function-calling definition.
func (t *Tool) Spec() luna.ToolDefinition { return spec }

// Execute searches for the query and returns the first video found.
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

	reqURL := t.baseURL + "/results?search_query=" + url.QueryEscape(in.Query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("video service network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return luna.ToolResult{}, &luna.ErrHTTP{Status: resp.StatusCode, Body: resp.Status}
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("read results page: %w", err)
	}

	id := videoIDPattern.FindSubmatch(page)
	if id == nil {
		return luna.ToolResult{}, fmt.Errorf("no video found for %q", in.Query)
	}
	watchURL := t.baseURL + "/watch?v=" + string(id[1])

	content := "Now playing: " + watchURL
	if title := titlePattern.FindSubmatch(page); title != nil {
		if unescaped, err := unescapeJSON(string(title[1])); err == nil {
			content = fmt.Sprintf("Now playing: %s (%s)", unescaped, watchURL)
		}
	}
	return luna.ToolResult{Content: content}, nil
}

// unescapeJSON decodes a JSON string fragment captured from the results page.
func unescapeJSON(s string) (string, error) {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return "", err
	}
	return out, nil
}
