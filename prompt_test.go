package luna

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildPromptLayout(t *testing.T) {
	persona := testPersona()
	history := []ChatMessage{
		{Role: RoleUser, Content: "hi there"},
		{Role: RoleAssistant, Content: "hello!"},
	}

	prompt, err := BuildPrompt(history, nil, persona)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	if !strings.HasPrefix(prompt, persona.SystemPrompt) {
		t.Error("system prompt not first")
	}
	if !strings.HasSuffix(prompt, persona.AIName+": ") {
		t.Errorf("prompt missing generation prefix, ends with %q", prompt[len(prompt)-20:])
	}
	if !strings.Contains(prompt, "Alex: hi there\n") {
		t.Error("user message not labeled with host name")
	}
	if !strings.Contains(prompt, "Luna: hello!\n") {
		t.Error("assistant message not labeled with AI name")
	}
}

func TestBuildPromptToolNarrativePlacement(t *testing.T) {
	persona := testPersona()
	history := []ChatMessage{{Role: RoleUser, Content: "what's the weather"}}
	outcomes := []ToolOutcome{{ToolName: "get_weather", Status: OutcomeSuccess, Output: "Sunny, 22C"}}

	prompt, err := BuildPrompt(history, outcomes, persona)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	narrative := strings.Index(prompt, "Retrieved information: Sunny, 22C")
	chat := strings.Index(prompt, "Alex: what's the weather")
	if narrative < 0 {
		t.Fatal("tool narrative missing")
	}
	if chat < 0 {
		t.Fatal("chat section missing")
	}
	if narrative > chat {
		t.Error("tool narrative must come before the chat section")
	}
	if narrative < len(persona.SystemPrompt) {
		t.Error("tool narrative must come after the system prompt")
	}
}

func TestBuildPromptFailureNarrative(t *testing.T) {
	persona := testPersona()
	outcomes := []ToolOutcome{
		{ToolName: "get_weather", Status: OutcomeSuccess, Output: "Sunny"},
		{ToolName: "web_search", Status: OutcomeFailed, Message: "Search isn't working right now - try Google directly!"},
	}

	prompt, err := BuildPrompt(nil, outcomes, persona)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if strings.Contains(prompt, "Retrieved information") {
		t.Error("failure outcome should suppress the success narrative")
	}
	if !strings.Contains(prompt, "Apologize briefly") {
		t.Error("recovery instruction missing")
	}
	if !strings.Contains(prompt, "try Google directly") {
		t.Error("responder line missing from recovery instruction")
	}
}

func TestBuildPromptShrinksOldestFirst(t *testing.T) {
	persona := testPersona()
	persona.ContextTokens = 60 // tight budget forces the shrink loop

	history := []ChatMessage{
		{Role: RoleUser, Content: strings.Repeat("old message content ", 10)},
		{Role: RoleUser, Content: "newest"},
	}

	prompt, err := BuildPrompt(history, nil, persona)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if strings.Contains(prompt, "old message content") {
		t.Error("oldest entry should have been dropped")
	}
	if !strings.Contains(prompt, "newest") {
		t.Error("newest entry should have survived")
	}
	// The source slice is untouched.
	if history[0].Content == "" {
		t.Error("shrink loop mutated caller history")
	}
}

func TestBuildPromptTooLong(t *testing.T) {
	persona := testPersona()
	persona.SystemPrompt = strings.Repeat("very long system prompt ", 100)
	persona.ContextTokens = 50

	_, err := BuildPrompt(nil, nil, persona)
	if !errors.Is(err, ErrPromptTooLong) {
		t.Fatalf("expected ErrPromptTooLong, got %v", err)
	}
}

func TestRenderToolOutcomesEmpty(t *testing.T) {
	if got := renderToolOutcomes(nil); got != "" {
		t.Fatalf("expected empty narrative, got %q", got)
	}
}

func TestAssembleInjectionsOrder(t *testing.T) {
	got := assembleInjections([]injection{
		{"chat", priorityChat},
		{"system", prioritySystem},
		{"tools", priorityToolResults},
	})
	if got != "systemtoolschat" {
		t.Fatalf("assembled %q", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 16), 4},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
