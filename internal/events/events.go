// Package events provides fire-and-forget event publication for the
// orchestration engine. Publication must never block the operation that
// emits the event.
package events

import "time"

// EventType represents the type of engine event.
type EventType string

const (
	// EventTaskAssigned indicates a task was bound to an agent.
	EventTaskAssigned EventType = "task_assigned"
	// EventTaskStarted indicates an agent began executing a task.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskAborted indicates a task was cancelled.
	EventTaskAborted EventType = "task_aborted"
	// EventTaskNeedsHuman indicates a task is waiting on human input.
	EventTaskNeedsHuman EventType = "task_needs_human"
	// EventTaskRetried indicates a failed task was requeued.
	EventTaskRetried EventType = "task_retried"
	// EventLockConflict indicates a lock acquisition was denied.
	EventLockConflict EventType = "lock_conflict"
	// EventEscalationTransfer indicates the sweeper handed a stuck task
	// to a different agent.
	EventEscalationTransfer EventType = "escalation_transfer"
	// EventEscalationNoCapacity indicates a stuck task could not be
	// reassigned because no other agent was idle.
	EventEscalationNoCapacity EventType = "escalation_no_capacity"
	// EventAgentStatusChanged indicates an agent changed status.
	EventAgentStatusChanged EventType = "agent_status_changed"
)

// Event represents a single engine event.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Path is the file path for lock events.
	Path string
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Metadata carries event-specific details.
	Metadata map[string]any
}

// Publisher is the capability the engine depends on for emitting events.
// Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// Nop is a Publisher that discards all events.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(Event) {}
