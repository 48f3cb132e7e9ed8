package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	luna "github.com/lunasparkai/luna"
)

// streamSSE reads an SSE stream from body, sends content deltas to ch,
// and returns the fully accumulated response (content + tool calls).
//
// The channel is closed when streaming completes. Tool calls arrive
// incrementally: each chunk carries an index, and the argument JSON
// arrives as string fragments that are merged per index.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func (c *Client) streamSSE(ctx context.Context, body io.Reader, ch chan<- luna.StreamDelta) (luna.CompletionResponse, error) {
	defer close(ch)

	scanner := bufio.NewScanner(body)
	// Increase buffer for large SSE payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var fullContent strings.Builder

	// Args accumulates as a byte slice: the slice grows when a later
	// index forces a reallocation, and a strings.Builder value moved by
	// that reallocation would panic on its next write.
	type partialToolCall struct {
		ID   string
		Name string
		Args []byte
	}
	var toolCalls []partialToolCall
	malformed := 0

	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		// End-of-stream sentinel.
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks; log only the first occurrence to
			// keep a corrupt stream from flooding the log.
			if malformed == 0 {
				c.logger.Warn("skipping malformed stream chunk", "error", err)
			}
			malformed++
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta == nil {
			continue
		}

		if delta.Content != "" {
			fullContent.WriteString(delta.Content)
			select {
			case ch <- luna.StreamDelta{Content: delta.Content}:
			case <-ctx.Done():
				return luna.CompletionResponse{}, ctx.Err()
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			for len(toolCalls) <= idx {
				toolCalls = append(toolCalls, partialToolCall{})
			}
			if tc.ID != "" {
				toolCalls[idx].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[idx].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[idx].Args = append(toolCalls[idx].Args, tc.Function.Arguments...)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return luna.CompletionResponse{}, err
	}

	var calls []luna.ToolCall
	for _, tc := range toolCalls {
		args := json.RawMessage(tc.Args)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		calls = append(calls, luna.ToolCall{ID: tc.ID, Name: tc.Name, Args: args})
	}

	return luna.CompletionResponse{
		Content:   fullContent.String(),
		ToolCalls: calls,
	}, nil
}
