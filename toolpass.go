package luna

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// noToolsMarker is the sentinel the tool model emits when nothing in
// the selected set applies to the request.
const noToolsMarker = "NO_TOOLS_NEEDED"

// toolHistoryWindow is how many recent history entries accompany the
// request in the tool prompt.
const toolHistoryWindow = 4

// toolPassMaxTokens caps the tool model's reply; tool selection needs
// structured calls, not prose.
const toolPassMaxTokens = 512

// ToolPass runs the dedicated tool turn: select candidate tools for a
// request, ask the model which to call, execute the calls, and stage
// the outcomes for the next primary turn. It never writes history and
// never fails the session; everything that can go wrong becomes a
// staged outcome.
type ToolPass struct {
	state     *State
	provider  Completer
	registry  *Registry
	selector  *Selector
	responder *Responder
	persona   Persona
	strategy  Strategy
	maxTools  int
	logger    *slog.Logger
}

// ToolPassOption customizes a ToolPass.
type ToolPassOption func(*ToolPass)

// WithToolPassLogger sets the logger. Defaults to a no-op logger.
func WithToolPassLogger(logger *slog.Logger) ToolPassOption {
	return func(p *ToolPass) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithToolStrategy sets the selection strategy used per pass. Defaults
// to StrategyHybrid.
func WithToolStrategy(s Strategy) ToolPassOption {
	return func(p *ToolPass) { p.strategy = s }
}

// WithToolLimit bounds how many tool definitions one pass may offer the
// tool model. Zero keeps the selector default.
func WithToolLimit(n int) ToolPassOption {
	return func(p *ToolPass) {
		if n > 0 {
			p.maxTools = n
		}
	}
}

// NewToolPass creates a ToolPass.
func NewToolPass(state *State, provider Completer, registry *Registry, selector *Selector, responder *Responder, persona Persona, opts ...ToolPassOption) *ToolPass {
	p := &ToolPass{
		state:     state,
		provider:  provider,
		registry:  registry,
		selector:  selector,
		responder: responder,
		persona:   persona,
		strategy:  StrategyHybrid,
		logger:    nopLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one complete tool pass for the given request. On return
// the outcomes are staged on the state and the new-message flag is set
// so the scheduler triggers a primary turn that folds them in.
func (p *ToolPass) Run(ctx context.Context, request string) {
	s := p.state
	s.SetToolThinking(true)
	defer s.SetToolThinking(false)

	outcomes := p.execute(ctx, request)
	s.SetPendingToolResults(outcomes)
	s.SetNewMessage(true)
}

func (p *ToolPass) execute(ctx context.Context, request string) (outcomes []ToolOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("tool pass panicked", "panic", rec)
			outcomes = []ToolOutcome{{
				Status:  OutcomeError,
				Message: "an internal error interrupted the lookup",
			}}
		}
	}()

	entries := p.selector.Select(ctx, SelectionContext{
		UserInput: request,
		History:   p.recentHistory(),
		Strategy:  p.strategy,
		MaxTools:  p.maxTools,
	})
	if len(entries) == 0 {
		return []ToolOutcome{{Status: OutcomeNoToolsNeeded}}
	}

	defs := make([]ToolDefinition, 0, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, e.Spec())
		names = append(names, e.Name())
	}
	p.logger.Debug("tool pass candidates", "request", request, "tools", strings.Join(names, ","))

	req := CompletionRequest{
		Prompt:    p.buildToolPrompt(request),
		Tools:     defs,
		MaxTokens: toolPassMaxTokens,
	}

	// The tool model streams too; content is only inspected for the
	// no-tools sentinel, so drain the channel.
	ch := make(chan StreamDelta, streamBuffer)
	go func() {
		for range ch {
		}
	}()
	resp, err := p.provider.Complete(ctx, req, ch)
	if err != nil {
		p.logger.Warn("tool model call failed", "error", err)
		return []ToolOutcome{{Status: OutcomeError, Message: err.Error()}}
	}

	if len(resp.ToolCalls) == 0 {
		if strings.Contains(resp.Content, noToolsMarker) {
			return []ToolOutcome{{Status: OutcomeNoToolsNeeded}}
		}
		return []ToolOutcome{{Status: OutcomeNoToolCalls}}
	}

	for _, call := range resp.ToolCalls {
		outcomes = append(outcomes, p.executeCall(ctx, request, call))
	}
	return outcomes
}

// executeCall runs one structured tool call and converts the result
// into an outcome. Failures are routed through the responder so the
// primary turn gets a presentable line instead of a raw error.
func (p *ToolPass) executeCall(ctx context.Context, request string, call ToolCall) ToolOutcome {
	entry := p.registry.Get(call.Name)
	if entry == nil {
		p.logger.Warn("tool model called unknown tool", "tool", call.Name)
		fb := p.responder.Respond(call.Name, "unknown tool")
		return ToolOutcome{ToolName: call.Name, Status: OutcomeFailed, Message: fb.Line}
	}

	result := entry.ExecuteWithMonitoring(ctx, request, call.Args)
	if result.Error != "" {
		fb := p.responder.Respond(call.Name, result.Error)
		p.logger.Warn("tool execution failed",
			"tool", call.Name, "category", string(fb.Category), "error", result.Error)
		return ToolOutcome{ToolName: call.Name, Status: OutcomeFailed, Message: fb.Line}
	}
	return ToolOutcome{ToolName: call.Name, Status: OutcomeSuccess, Output: result.Content}
}

// buildToolPrompt frames the request for the tool model together with
// a short window of cleaned recent conversation. Trigger markers are
// stripped so the tool model never sees its own plumbing.
func (p *ToolPass) buildToolPrompt(request string) string {
	var b strings.Builder
	history := p.recentHistory()
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range history {
			content := strings.TrimSpace(toolTriggerPattern.ReplaceAllString(m.Content, ""))
			if content == "" {
				continue
			}
			name := p.persona.HostName
			if m.Role == RoleAssistant {
				name = p.persona.AIName
			}
			fmt.Fprintf(&b, "%s: %s\n", name, content)
		}
		b.WriteString("\n")
	}
	b.WriteString("Request: " + request + "\n")
	b.WriteString("Call the tools that satisfy the request. If none of the available tools apply, respond with " + noToolsMarker + ".")
	return b.String()
}

func (p *ToolPass) recentHistory() []ChatMessage {
	history := p.state.History()
	if len(history) > toolHistoryWindow {
		history = history[len(history)-toolHistoryWindow:]
	}
	return history
}
