// Package clock provides a static tool that reports the current time.
package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	luna "github.com/lunasparkai/luna"
)

// Name is the registry name of the time tool.
const Name = "get_current_time"

var spec = luna.ToolDefinition{
	Name:        Name,
	Description: "Get the current date and time, optionally in a specific timezone.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {
				"type": "string",
				"description": "IANA timezone name, e.g. Asia/Tokyo. Defaults to local time."
			}
		}
	}`),
}

// Tool reports wall-clock time.
type Tool struct {
	now func() time.Time
}

// Option configures a Tool.
type Option func(*Tool)

// WithNow overrides the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(t *Tool) { t.now = now }
}

// New creates the time tool.
func New(opts ...Option) *Tool {
	t := &Tool{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Spec returns the function-calling definition.
func (t *Tool) Spec() luna.ToolDefinition { return spec }

// Execute formats the current time, resolving the timezone if given.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (luna.ToolResult, error) {
	var in struct {
		Timezone string `json:"timezone"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return luna.ToolResult{}, fmt.Errorf("invalid parameters: %w", err)
		}
	}

	now := t.now()
	if in.Timezone != "" {
		loc, err := time.LoadLocation(in.Timezone)
		if err != nil {
			return luna.ToolResult{}, fmt.Errorf("unknown timezone %q", in.Timezone)
		}
		now = now.In(loc)
	}

	return luna.ToolResult{
		Content: now.Format("Monday, January 2, 2006 at 3:04 PM MST"),
	}, nil
}
