package events

import (
	"log"
	"sync/atomic"
	"time"
)

// Emitter is a channel-backed Publisher. It provides a simple,
// thread-safe way to deliver events to a single subscriber.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates a new Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Publish sends an event to the events channel.
// If the channel is full, it tries with a short timeout before dropping
// the event, so emission never stalls the calling operation.
func (e *Emitter) Publish(event Event) {
	// Try immediate send first
	select {
	case e.events <- event:
		return
	default:
	}

	// Give the receiver 100ms to drain before dropping
	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[events] WARNING: channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for subscribers.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel.
// This should be called once no more events will be published.
func (e *Emitter) Close() {
	close(e.events)
}

var _ Publisher = (*Emitter)(nil)
