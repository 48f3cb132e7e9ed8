package luna

import (
	"sync"
	"time"
)

// State is the single shared conversation record. Every component reads
// and mutates conversation data exclusively through its methods, and
// every externally observable mutation enqueues exactly one event on the
// outbound queue. Setters for the three per-generator thinking flags
// additionally recompute the combined AI-thinking flag and emit its
// event only when the derived value changes; the recomputation happens
// under the same lock as the mutation, so observers never see the flags
// out of sync.
//
// No State method blocks. All methods are safe for concurrent use.
type State struct {
	mu sync.Mutex

	humanSpeaking bool
	aiSpeaking    bool
	textThinking  bool
	toolThinking  bool
	imageThinking bool
	aiThinking    bool // derived: OR of the three thinking flags

	history []ChatMessage

	pendingToolResults []ToolOutcome
	toolRequest        string
	toolNeeded         bool

	newMessage      bool
	lastMessageTime time.Time
	sttReady        bool
	ttsReady        bool

	chatQueue []ChatMessageIn

	generationEnabled bool
	cancelNext        bool
	terminated        bool

	events *EventQueue
}

// NewState creates a State with an empty history and an empty event queue.
func NewState() *State {
	return &State{
		generationEnabled: true,
		events:            NewEventQueue(),
	}
}

// Events returns the outbound event queue consumed by presentation
// collaborators. The core never assumes anything is draining it.
func (s *State) Events() *EventQueue { return s.events }

// --- activity flags ---

// SetHumanSpeaking records whether the human is currently talking.
func (s *State) SetHumanSpeaking(v bool) {
	s.mu.Lock()
	s.humanSpeaking = v
	s.mu.Unlock()
	s.events.Push(Event{Name: EventHumanSpeaking, Payload: v})
}

// HumanSpeaking reports whether the human is currently talking.
func (s *State) HumanSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.humanSpeaking
}

// SetAISpeaking records whether the agent's voice output is active.
func (s *State) SetAISpeaking(v bool) {
	s.mu.Lock()
	s.aiSpeaking = v
	s.mu.Unlock()
	s.events.Push(Event{Name: EventAISpeaking, Payload: v})
}

// AISpeaking reports whether the agent's voice output is active.
func (s *State) AISpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiSpeaking
}

// SetTextThinking flags the plain-text generation path as active.
func (s *State) SetTextThinking(v bool) {
	s.setThinking(&s.textThinking, v, EventTextThinking)
}

// SetToolThinking flags the tool-invocation pass as active.
func (s *State) SetToolThinking(v bool) {
	s.setThinking(&s.toolThinking, v, EventToolThinking)
}

// SetImageThinking flags the multimodal generation path as active.
func (s *State) SetImageThinking(v bool) {
	s.setThinking(&s.imageThinking, v, EventImageThinking)
}

// setThinking stores one thinking flag, emits its event, and emits the
// combined AI-thinking event iff the derived value changed.
func (s *State) setThinking(field *bool, v bool, event string) {
	s.mu.Lock()
	*field = v
	combined := s.textThinking || s.toolThinking || s.imageThinking
	changed := combined != s.aiThinking
	s.aiThinking = combined
	s.mu.Unlock()

	s.events.Push(Event{Name: event, Payload: v})
	if changed {
		s.events.Push(Event{Name: EventAIThinking, Payload: combined})
	}
}

// AIThinking reports the combined thinking flag: true while any
// generation path is producing output.
func (s *State) AIThinking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiThinking
}

// ThinkingStatus returns the individual thinking flags
// (text, tool, image) as observed atomically.
func (s *State) ThinkingStatus() (text, tool, image bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textThinking, s.toolThinking, s.imageThinking
}

// --- history ---

// AppendHistory appends one message to the conversation log. History is
// append-only; prompt assembly truncates a copy, never the stored log.
func (s *State) AppendHistory(msg ChatMessage) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()
}

// History returns a copy of the conversation log in insertion order.
func (s *State) History() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// --- pending tool results ---

// SetPendingToolResults replaces the staged tool outcomes. Replacement
// (not accumulation) prevents stale results leaking into later turns.
func (s *State) SetPendingToolResults(results []ToolOutcome) {
	s.mu.Lock()
	s.pendingToolResults = results
	s.mu.Unlock()
}

// TakePendingToolResults consumes and clears the staged tool outcomes.
func (s *State) TakePendingToolResults() []ToolOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pendingToolResults
	s.pendingToolResults = nil
	return out
}

// --- tool trigger ---

// RequestToolPass stages a one-shot tool-pass request extracted from a
// primary generation's trigger marker.
func (s *State) RequestToolPass(request string) {
	s.mu.Lock()
	s.toolRequest = request
	s.toolNeeded = true
	s.mu.Unlock()
}

// ToolPassNeeded reports whether a tool-pass request is pending.
func (s *State) ToolPassNeeded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolNeeded
}

// TakeToolRequest consumes the pending tool-pass request, clearing the
// needed flag. The second return is false when nothing was pending.
func (s *State) TakeToolRequest() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.toolNeeded {
		return "", false
	}
	s.toolNeeded = false
	req := s.toolRequest
	s.toolRequest = ""
	return req, true
}

// --- triggers and readiness ---

// SetNewMessage flags that an unprocessed message is waiting for the
// next primary generation.
func (s *State) SetNewMessage(v bool) {
	s.mu.Lock()
	s.newMessage = v
	s.mu.Unlock()
}

// NewMessage reports whether an unprocessed message is waiting.
func (s *State) NewMessage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newMessage
}

// TouchLastMessage records now as the time of the latest message.
func (s *State) TouchLastMessage() {
	s.mu.Lock()
	s.lastMessageTime = time.Now()
	s.mu.Unlock()
}

// LastMessageTime returns the time of the latest message; the zero time
// means no message has been recorded yet.
func (s *State) LastMessageTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessageTime
}

// SetSTTReady records speech-input readiness.
func (s *State) SetSTTReady(v bool) {
	s.mu.Lock()
	s.sttReady = v
	s.mu.Unlock()
}

// SetTTSReady records speech-output readiness.
func (s *State) SetTTSReady(v bool) {
	s.mu.Lock()
	s.ttsReady = v
	s.mu.Unlock()
}

// Ready reports whether both speech subsystems are initialized. The
// scheduler never triggers a generation before this holds.
func (s *State) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sttReady && s.ttsReady
}

// --- platform chat queue ---

// QueueChatMessage appends a viewer chat message to the unprocessed
// queue and emits the updated queue as an event.
func (s *State) QueueChatMessage(msg ChatMessageIn) {
	s.mu.Lock()
	s.chatQueue = append(s.chatQueue, msg)
	queued := make([]ChatMessageIn, len(s.chatQueue))
	copy(queued, s.chatQueue)
	s.mu.Unlock()
	s.events.Push(Event{Name: EventRecentChat, Payload: queued})
}

// QueuedChatCount returns the number of unprocessed chat messages.
func (s *State) QueuedChatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chatQueue)
}

// TakeChatMessages consumes the unprocessed chat queue.
func (s *State) TakeChatMessages() []ChatMessageIn {
	s.mu.Lock()
	out := s.chatQueue
	s.chatQueue = nil
	s.mu.Unlock()
	if len(out) > 0 {
		s.events.Push(Event{Name: EventRecentChat, Payload: []ChatMessageIn{}})
	}
	return out
}

// --- generation control ---

// SetGenerationEnabled toggles all generation paths on or off.
func (s *State) SetGenerationEnabled(v bool) {
	s.mu.Lock()
	s.generationEnabled = v
	s.mu.Unlock()
	s.events.Push(Event{Name: EventLLMStatus, Payload: v})
}

// GenerationEnabled reports whether generation paths may run.
func (s *State) GenerationEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationEnabled
}

// CancelNext arms the cooperative cancellation flag. The in-flight
// generation observes it between streamed chunks and discards its
// partial output.
func (s *State) CancelNext() {
	s.mu.Lock()
	s.cancelNext = true
	s.mu.Unlock()
}

// CancelPending reports whether cancellation is armed.
func (s *State) CancelPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelNext
}

// ClearCancel disarms the cancellation flag. Called by the generation
// path that consumed it.
func (s *State) ClearCancel() {
	s.mu.Lock()
	s.cancelNext = false
	s.mu.Unlock()
}

// --- shutdown ---

// Terminate sets the monotonic shutdown flag. All loops observe it and
// exit promptly; it is never cleared.
func (s *State) Terminate() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
}

// Terminated reports whether shutdown has been requested.
func (s *State) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}
