// Package weather provides the current-conditions tool backed by the
// wttr.in JSON API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	luna "github.com/lunasparkai/luna"
)

// Name is the registry name of the weather tool.
const Name = "get_weather"

const defaultBaseURL = "https://wttr.in"

var spec = luna.ToolDefinition{
	Name:        Name,
	Description: "Get the current weather conditions for a location.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"location": {
				"type": "string",
				"description": "City or place name, e.g. \"Tokyo\" or \"New York\""
			}
		},
		"required": ["location"]
	}`),
}

// Tool fetches current conditions for a location.
type Tool struct {
	baseURL string
	client  *http.Client
}

// Option configures a Tool.
type Option func(*Tool)

// WithBaseURL overrides the weather service URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(t *Tool) { t.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) { t.client = c }
}

// New creates the weather tool.
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

// wttrResponse is the subset of the wttr.in ?format=j1 payload we read.
type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		FeelsLikeC  string `json:"FeelsLikeC"`
		Humidity    string `json:"humidity"`
		WindspeedKm string `json:"windspeedKmph"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

// Execute fetches and summarizes current conditions.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (luna.ToolResult, error) {
	var in struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return luna.ToolResult{}, fmt.Errorf("invalid parameters: %w", err)
	}
	if strings.TrimSpace(in.Location) == "" {
		return luna.ToolResult{}, fmt.Errorf("invalid parameters: location is required")
	}

	reqURL := t.baseURL + "/" + url.PathEscape(in.Location) + "?format=j1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return luna.ToolResult{}, fmt.Errorf("weather service network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return luna.ToolResult{}, &luna.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}

	var wr wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return luna.ToolResult{}, fmt.Errorf("weather service returned invalid data: %w", err)
	}
	if len(wr.CurrentCondition) == 0 {
		return luna.ToolResult{}, fmt.Errorf("weather service returned no conditions for %q", in.Location)
	}

	cc := wr.CurrentCondition[0]
	desc := "unknown conditions"
	if len(cc.WeatherDesc) > 0 {
		desc = cc.WeatherDesc[0].Value
	}
	return luna.ToolResult{
		Content: fmt.Sprintf("Weather in %s: %s, %s°C (feels like %s°C), humidity %s%%, wind %s km/h",
			in.Location, desc, cc.TempC, cc.FeelsLikeC, cc.Humidity, cc.WindspeedKm),
	}, nil
}
