package luna

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// --- Tool mocks (shared across registry, selector, and tool-pass tests) ---

type mockTool struct {
	name string
	desc string
}

func (m mockTool) Spec() ToolDefinition {
	return ToolDefinition{Name: m.name, Description: m.desc}
}

func (m mockTool) Execute(_ context.Context, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{Content: "result from " + m.name}, nil
}

type errTool struct {
	name string
	msg  string
}

func (e errTool) Spec() ToolDefinition {
	return ToolDefinition{Name: e.name, Description: "always fails"}
}

func (e errTool) Execute(_ context.Context, _ json.RawMessage) (ToolResult, error) {
	return ToolResult{}, errors.New(e.msg)
}

type panicTool struct {
	name string
}

func (p panicTool) Spec() ToolDefinition {
	return ToolDefinition{Name: p.name, Description: "always panics"}
}

func (p panicTool) Execute(_ context.Context, _ json.RawMessage) (ToolResult, error) {
	panic("tool exploded")
}

// --- Completer mocks ---

// scriptedCompleter streams the configured chunks and returns the
// configured response. Each call consumes the next script entry; the
// last entry repeats.
type scriptedCompleter struct {
	mu      sync.Mutex
	script  []completion
	calls   int
	lastReq CompletionRequest
}

type completion struct {
	chunks []string
	resp   CompletionResponse
	err    error
}

func (c *scriptedCompleter) Complete(_ context.Context, req CompletionRequest, ch chan<- StreamDelta) (CompletionResponse, error) {
	c.mu.Lock()
	c.lastReq = req
	i := c.calls
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.calls++
	step := c.script[i]
	c.mu.Unlock()

	for _, chunk := range step.chunks {
		ch <- StreamDelta{Content: chunk}
	}
	close(ch)
	return step.resp, step.err
}

func (c *scriptedCompleter) request() CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReq
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// --- VectorIndex mocks ---

type fakeIndex struct {
	mu       sync.Mutex
	docs     map[string]string
	matches  []Match
	queryErr error
}

func newFakeIndex(matches ...Match) *fakeIndex {
	return &fakeIndex{docs: make(map[string]string), matches: matches}
}

func (f *fakeIndex) Upsert(_ context.Context, id, document string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = document
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ string, k int, _ map[string]string) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if k < len(f.matches) {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

// --- Speech mocks ---

type fakeSpeech struct {
	mu     sync.Mutex
	ready  bool
	spoken []string
}

func (f *fakeSpeech) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeSpeech) Speak(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
}

func (f *fakeSpeech) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

// --- Shared fixtures ---

func testPersona() Persona {
	return Persona{
		AIName:         "Luna",
		HostName:       "Alex",
		SystemPrompt:   "You are Luna, a virtual streamer.\n",
		ContextTokens:  4096,
		MaxReplyTokens: 256,
	}
}

// drainEvents pops every queued event and returns them in order.
func drainEvents(q *EventQueue) []Event {
	var events []Event
	for {
		ev, ok := q.Pop()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

// eventNames extracts just the names, for order assertions.
func eventNames(events []Event) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}
