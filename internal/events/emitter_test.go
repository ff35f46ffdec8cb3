package events

import (
	"testing"
	"time"
)

func TestEmitterDeliversEvents(t *testing.T) {
	emitter := NewEmitter(4)
	defer emitter.Close()

	emitter.Publish(Event{Type: EventTaskAssigned, TaskID: "task-1", Timestamp: time.Now()})

	select {
	case got := <-emitter.Events():
		if got.Type != EventTaskAssigned {
			t.Errorf("event type = %q, want %q", got.Type, EventTaskAssigned)
		}
		if got.TaskID != "task-1" {
			t.Errorf("event task = %q, want task-1", got.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	emitter := NewEmitter(1)
	defer emitter.Close()

	// Fill the buffer, then publish with no receiver draining.
	emitter.Publish(Event{Type: EventTaskStarted})
	emitter.Publish(Event{Type: EventTaskCompleted})

	if got := emitter.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
}
