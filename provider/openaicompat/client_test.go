package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	luna "github.com/lunasparkai/luna"
)

// buildSSE constructs a mock SSE stream from data lines.
func buildSSE(lines ...string) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func sseServer(t *testing.T, sse string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, capture); err != nil {
				t.Errorf("unmarshal request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sse)
	}))
}

func TestCompleteTextChunks(t *testing.T) {
	sse := buildSSE(
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hello"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":" world"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		"[DONE]",
	)
	var captured chatRequest
	srv := sseServer(t, sse, &captured)
	defer srv.Close()

	c := NewClient("", "test-model", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	resp, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "hi"}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	var deltas []string
	for d := range ch {
		deltas = append(deltas, d.Content)
	}
	if resp.Content != "Hello world" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas = %v", deltas)
	}
	if captured.Model != "test-model" || !captured.Stream {
		t.Errorf("request = %+v", captured)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestCompleteToolCallMerging(t *testing.T) {
	// Tool calls stream incrementally: first the ID and name, then
	// argument fragments keyed by index.
	sse := buildSSE(
		`{"id":"c2","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"c2","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\""}}]}}]}`,
		`{"id":"c2","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"London\"}"}}]}}]}`,
		`{"id":"c2","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		"[DONE]",
	)
	srv := sseServer(t, sse, nil)
	defer srv.Close()

	c := NewClient("", "test-model", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	resp, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "weather?"}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for range ch {
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "get_weather" {
		t.Errorf("call = %+v", tc)
	}
	if string(tc.Args) != `{"city":"London"}` {
		t.Errorf("args = %s", tc.Args)
	}
}

func TestCompleteParallelToolCalls(t *testing.T) {
	sse := buildSSE(
		`{"id":"c3","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"get_weather","arguments":"{}"}}]}}]}`,
		`{"id":"c3","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"b","function":{"name":"web_search","arguments":"{}"}}]}}]}`,
		"[DONE]",
	)
	srv := sseServer(t, sse, nil)
	defer srv.Close()

	c := NewClient("", "m", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	resp, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "both"}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for range ch {
	}

	if len(resp.ToolCalls) != 2 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Name != "get_weather" || resp.ToolCalls[1].Name != "web_search" {
		t.Errorf("calls = %+v", resp.ToolCalls)
	}
}

func TestCompleteInterleavedArgumentFragments(t *testing.T) {
	// Fragments for the first call keep arriving after the second call
	// has grown the merge slice.
	sse := buildSSE(
		`{"id":"c7","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"get_weather","arguments":"{\"city\":"}}]}}]}`,
		`{"id":"c7","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"b","function":{"name":"web_search","arguments":"{\"query\":\"news\"}"}}]}}]}`,
		`{"id":"c7","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"London\"}"}}]}}]}`,
		"[DONE]",
	)
	srv := sseServer(t, sse, nil)
	defer srv.Close()

	c := NewClient("", "m", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	resp, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "both"}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for range ch {
	}

	if len(resp.ToolCalls) != 2 {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if got := string(resp.ToolCalls[0].Args); got != `{"city":"London"}` {
		t.Errorf("first call args = %s", got)
	}
	if got := string(resp.ToolCalls[1].Args); got != `{"query":"news"}` {
		t.Errorf("second call args = %s", got)
	}
}

func TestCompleteSkipsMalformedChunks(t *testing.T) {
	sse := buildSSE(
		`{"id":"c4","choices":[{"index":0,"delta":{"content":"keep"}}]}`,
		`{not json at all`,
		`{"id":"c4","choices":[{"index":0,"delta":{"content":" going"}}]}`,
		"[DONE]",
	)
	srv := sseServer(t, sse, nil)
	defer srv.Close()

	c := NewClient("", "m", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	resp, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "x"}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for range ch {
	}
	if resp.Content != "keep going" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestCompleteInvalidToolArgsNormalized(t *testing.T) {
	sse := buildSSE(
		`{"id":"c5","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"a","function":{"name":"calc","arguments":"{broken"}}]}}]}`,
		"[DONE]",
	)
	srv := sseServer(t, sse, nil)
	defer srv.Close()

	c := NewClient("", "m", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	resp, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "x"}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for range ch {
	}
	if string(resp.ToolCalls[0].Args) != "{}" {
		t.Errorf("args = %s", resp.ToolCalls[0].Args)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "overloaded")
	}))
	defer srv.Close()

	c := NewClient("", "m", srv.URL)
	ch := make(chan luna.StreamDelta, 10)
	_, err := c.Complete(context.Background(), luna.CompletionRequest{Prompt: "x"}, ch)
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *luna.ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	// The channel must be closed even on the error path.
	if _, open := <-ch; open {
		t.Fatal("channel left open after error")
	}
}

func TestCompleteSendsToolsAndImages(t *testing.T) {
	sse := buildSSE("[DONE]")
	var captured chatRequest
	srv := sseServer(t, sse, &captured)
	defer srv.Close()

	c := NewClient("key", "m", srv.URL, WithTemperature(0.7))
	ch := make(chan luna.StreamDelta, 1)
	_, err := c.Complete(context.Background(), luna.CompletionRequest{
		Prompt: "describe this",
		Images: []luna.ImageData{{MimeType: "image/png", Base64: "aWJt"}},
		Tools: []luna.ToolDefinition{
			{Name: "get_weather", Description: "weather", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		MaxTokens: 128,
		Stop:      []string{"Alex:"},
	}, ch)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	for range ch {
	}

	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != "get_weather" {
		t.Errorf("tools = %+v", captured.Tools)
	}
	if captured.MaxTokens != 128 || len(captured.Stop) != 1 {
		t.Errorf("request = %+v", captured)
	}
	if captured.Temperature == nil || *captured.Temperature != 0.7 {
		t.Errorf("temperature = %v", captured.Temperature)
	}
	blocks, ok := captured.Messages[0].Content.([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("content = %#v", captured.Messages[0].Content)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		// Out-of-order data entries must land by index.
		io.WriteString(w, `{"data":[{"index":1,"embedding":[0.4,0.5]},{"index":0,"embedding":[0.1,0.2]}]}`)
	}))
	defer srv.Close()

	c := NewClient("", "embed-model", srv.URL)
	vecs, err := c.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][0] != 0.4 {
		t.Fatalf("vectors = %v", vecs)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := NewClient("", "m", "http://unused")
	vecs, err := c.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("got %v, %v", vecs, err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"data":[{"index":0,"embedding":[0.1]}]}`)
	}))
	defer srv.Close()

	c := NewClient("", "m", srv.URL)
	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}
