package luna

import (
	"context"
	"sync"
)

// Event names emitted on the outbound stream. Presentation clients key
// off these, so they are part of the external contract.
const (
	EventHumanSpeaking    = "human_speaking"
	EventAISpeaking       = "AI_speaking"
	EventAIThinking       = "AI_thinking"
	EventTextThinking     = "text_llm_thinking"
	EventToolThinking     = "tool_llm_thinking"
	EventImageThinking    = "image_llm_thinking"
	EventPatienceUpdate   = "patience_update"
	EventFullPrompt       = "full_prompt"
	EventAIResponse       = "AI_response"
	EventResetNextMessage = "reset_next_message"
	EventRecentChat       = "recent_chat_messages"
	EventBlacklist        = "get_blacklist"
	EventLLMStatus        = "LLM_status"
)

// Event is one externally observable state change.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// PatienceUpdate is the payload of EventPatienceUpdate.
type PatienceUpdate struct {
	Current float64 `json:"crr_time"`
	Total   float64 `json:"total_time"`
}

// EventQueue is an ordered, unbounded event queue. Push never blocks,
// which keeps State mutations non-blocking even when no presentation
// client is draining the stream.
type EventQueue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{} // closed-and-replaced on each push
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{notify: make(chan struct{})}
}

// Push appends an event.
func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
}

// Pop removes and returns the oldest event without blocking.
func (q *EventQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

// Next blocks until an event is available or ctx is cancelled.
func (q *EventQueue) Next(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-wait:
		}
	}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
