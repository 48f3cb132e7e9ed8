package luna

import (
	"context"
	"testing"
	"time"
)

func TestEventQueueOrder(t *testing.T) {
	q := NewEventQueue()
	q.Push(Event{Name: "first"})
	q.Push(Event{Name: "second"})
	q.Push(Event{Name: "third"})

	for _, want := range []string{"first", "second", "third"} {
		ev, ok := q.Pop()
		if !ok || ev.Name != want {
			t.Fatalf("got %q/%v, want %q", ev.Name, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop on empty queue succeeded")
	}
}

func TestEventQueueNextBlocks(t *testing.T) {
	q := NewEventQueue()
	got := make(chan Event, 1)
	go func() {
		ev, err := q.Next(context.Background())
		if err != nil {
			return
		}
		got <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(Event{Name: "wakeup"})

	select {
	case ev := <-got:
		if ev.Name != "wakeup" {
			t.Fatalf("got %q", ev.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next never woke up")
	}
}

func TestEventQueueNextCancel(t *testing.T) {
	q := NewEventQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Next(ctx); err == nil {
		t.Fatal("cancelled Next returned no error")
	}
}

func TestEventQueueLen(t *testing.T) {
	q := NewEventQueue()
	if q.Len() != 0 {
		t.Fatal("new queue not empty")
	}
	q.Push(Event{Name: "one"})
	q.Push(Event{Name: "two"})
	if q.Len() != 2 {
		t.Fatalf("len = %d", q.Len())
	}
}
