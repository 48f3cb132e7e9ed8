package luna

import "encoding/json"

// --- Conversation types ---

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in the conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ImageData is a base64-encoded frame attached to a multimodal request.
type ImageData struct {
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

// --- LLM protocol types ---

// ToolCall is a structured function call returned by the completion service.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolDefinition describes one invocable capability to the completion
// service. Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionRequest is a single streaming generation request. The core
// assembles the whole turn into one prompt string; images and tool specs
// are attached by the multimodal and tool paths respectively.
type CompletionRequest struct {
	Prompt    string
	Images    []ImageData
	Tools     []ToolDefinition
	MaxTokens int
	Stop      []string
}

// StreamDelta is one incremental content chunk of a streamed completion.
type StreamDelta struct {
	Content string
}

// CompletionResponse is the fully accumulated result of a streamed
// completion: the final text plus any structured tool calls.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// --- Tool execution types ---

// ToolResult is the raw outcome of executing a single tool.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Outcome statuses recorded in pending tool results. The primary
// generation folds these into its next prompt; they are never written
// to history.
const (
	OutcomeSuccess       = "success"
	OutcomeNoToolsNeeded = "no_tools_needed"
	OutcomeNoToolCalls   = "no_tool_calls"
	OutcomeFailed        = "execution_failed"
	OutcomeError         = "error"
)

// ToolOutcome is one tool-pass result staged for the next primary turn.
// Output carries the raw tool payload on success; Message carries the
// human-presentable failure narrative otherwise.
type ToolOutcome struct {
	ToolName string `json:"tool_name"`
	Status   string `json:"status"`
	Output   string `json:"output,omitempty"`
	Message  string `json:"message,omitempty"`
}

// --- Inbound platform chat ---

// ChatMessageIn is a viewer chat message received from the presentation
// channel, queued until the next primary generation consumes it.
type ChatMessageIn struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
