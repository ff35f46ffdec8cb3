package models

import "time"

// Capability is the closed set of agent capability kinds. Using a fixed
// enum instead of free-form type names removes silent typos from routing.
type Capability string

const (
	// CapabilityCoder is a general-purpose implementation agent.
	CapabilityCoder Capability = "coder"
	// CapabilityQA is a verification and testing agent.
	CapabilityQA Capability = "qa"
	// CapabilityCTO is a supervisory planning agent.
	CapabilityCTO Capability = "cto"
)

// Valid returns true if the capability is a known value.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityCoder, CapabilityQA, CapabilityCTO:
		return true
	default:
		return false
	}
}

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent is available for work.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusBusy indicates the agent is bound to a task.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusStuck indicates the agent has stopped making progress.
	AgentStatusStuck AgentStatus = "stuck"
	// AgentStatusOffline indicates the agent is not running.
	AgentStatusOffline AgentStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusBusy, AgentStatusStuck, AgentStatusOffline:
		return true
	default:
		return false
	}
}

// Agent represents a worker identity bound to exactly one capability.
type Agent struct {
	// ID is the unique identifier for this agent (e.g., "coder-01").
	ID string `json:"id"`
	// Capability is the kind of work this agent handles.
	Capability Capability `json:"capability"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// CurrentTaskID is the task the agent is working on, if any.
	// Non-empty exactly when Status is busy.
	CurrentTaskID string `json:"current_task_id,omitempty"`
	// CompletedCount is the number of tasks this agent has completed.
	CompletedCount int `json:"completed_count"`
	// FailedCount is the number of tasks this agent has failed.
	FailedCount int `json:"failed_count"`
	// CreditsUsed is the cumulative credit consumption of this agent.
	CreditsUsed float64 `json:"credits_used"`
	// CreatedAt is when the agent was registered.
	CreatedAt time.Time `json:"created_at"`
}

// Idle returns true if the agent can accept a new assignment.
func (a *Agent) Idle() bool {
	return a.Status == AgentStatusIdle
}
