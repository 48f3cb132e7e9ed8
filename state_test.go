package luna

import (
	"testing"
	"time"
)

func TestStateCombinedThinking(t *testing.T) {
	s := NewState()
	drainEvents(s.Events())

	s.SetTextThinking(true)
	s.SetToolThinking(true)

	if !s.AIThinking() {
		t.Fatal("expected combined thinking to be set")
	}

	// Dropping one flag while another stays up must not clear the
	// combined flag.
	s.SetTextThinking(false)
	if !s.AIThinking() {
		t.Fatal("combined thinking cleared while tool path still active")
	}

	s.SetToolThinking(false)
	if s.AIThinking() {
		t.Fatal("combined thinking stuck after all flags dropped")
	}
}

func TestStateCombinedThinkingEventOnlyOnChange(t *testing.T) {
	s := NewState()
	drainEvents(s.Events())

	s.SetTextThinking(true)  // combined false -> true
	s.SetToolThinking(true)  // combined unchanged
	s.SetTextThinking(false) // combined unchanged
	s.SetToolThinking(false) // combined true -> false

	var combined []Event
	for _, ev := range drainEvents(s.Events()) {
		if ev.Name == EventAIThinking {
			combined = append(combined, ev)
		}
	}
	if len(combined) != 2 {
		t.Fatalf("expected 2 combined-thinking events, got %d", len(combined))
	}
	if combined[0].Payload != true || combined[1].Payload != false {
		t.Fatalf("expected true then false, got %v then %v", combined[0].Payload, combined[1].Payload)
	}
}

func TestStatePerFlagEventAlwaysEmitted(t *testing.T) {
	s := NewState()
	drainEvents(s.Events())

	s.SetTextThinking(true)
	s.SetTextThinking(true) // same value, still announced

	count := 0
	for _, ev := range drainEvents(s.Events()) {
		if ev.Name == EventTextThinking {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected per-flag event on every set, got %d", count)
	}
}

func TestStateToolRequestOneShot(t *testing.T) {
	s := NewState()

	if _, ok := s.TakeToolRequest(); ok {
		t.Fatal("empty state produced a tool request")
	}

	s.RequestToolPass("what's the weather")
	if !s.ToolPassNeeded() {
		t.Fatal("tool pass not flagged after request")
	}

	req, ok := s.TakeToolRequest()
	if !ok || req != "what's the weather" {
		t.Fatalf("got %q, %v", req, ok)
	}
	if s.ToolPassNeeded() {
		t.Fatal("tool pass still flagged after take")
	}
	if _, ok := s.TakeToolRequest(); ok {
		t.Fatal("second take returned a request")
	}
}

func TestStatePendingToolResultsReplaceAndTake(t *testing.T) {
	s := NewState()

	s.SetPendingToolResults([]ToolOutcome{{ToolName: "old", Status: OutcomeSuccess}})
	s.SetPendingToolResults([]ToolOutcome{{ToolName: "new", Status: OutcomeSuccess}})

	got := s.TakePendingToolResults()
	if len(got) != 1 || got[0].ToolName != "new" {
		t.Fatalf("expected full replacement, got %+v", got)
	}
	if again := s.TakePendingToolResults(); again != nil {
		t.Fatalf("second take returned %+v", again)
	}
}

func TestStateHistoryCopy(t *testing.T) {
	s := NewState()
	s.AppendHistory(ChatMessage{Role: RoleUser, Content: "hi"})

	h := s.History()
	h[0].Content = "mutated"

	if s.History()[0].Content != "hi" {
		t.Fatal("History returned a live reference to internal state")
	}
}

func TestStateChatQueue(t *testing.T) {
	s := NewState()
	drainEvents(s.Events())

	s.QueueChatMessage(ChatMessageIn{UserID: "viewer1", Text: "hello"})
	s.QueueChatMessage(ChatMessageIn{UserID: "viewer2", Text: "hey"})

	if s.QueuedChatCount() != 2 {
		t.Fatalf("queued count = %d, want 2", s.QueuedChatCount())
	}
	msgs := s.TakeChatMessages()
	if len(msgs) != 2 || msgs[0].UserID != "viewer1" {
		t.Fatalf("take returned %+v", msgs)
	}
	if s.QueuedChatCount() != 0 {
		t.Fatal("queue not empty after take")
	}
}

func TestStateCancelPending(t *testing.T) {
	s := NewState()

	s.CancelNext()
	if !s.CancelPending() {
		t.Fatal("cancel flag not set")
	}
	s.ClearCancel()
	if s.CancelPending() {
		t.Fatal("cancel flag survived clear")
	}
}

func TestStateReadiness(t *testing.T) {
	s := NewState()
	if s.Ready() {
		t.Fatal("new state reports ready")
	}
	s.SetSTTReady(true)
	if s.Ready() {
		t.Fatal("ready with only speech input up")
	}
	s.SetTTSReady(true)
	if !s.Ready() {
		t.Fatal("not ready with both engines up")
	}
}

func TestStateTerminateIsMonotonic(t *testing.T) {
	s := NewState()
	s.Terminate()
	s.Terminate()
	if !s.Terminated() {
		t.Fatal("terminate did not stick")
	}
}

func TestStateTouchLastMessage(t *testing.T) {
	s := NewState()
	before := s.LastMessageTime()
	time.Sleep(2 * time.Millisecond)
	s.TouchLastMessage()
	if !s.LastMessageTime().After(before) {
		t.Fatal("touch did not advance the idle clock")
	}
}
