package models

import "time"

// DefaultLockTTLMinutes is the default lease duration for a file lock.
const DefaultLockTTLMinutes = 30

// FileLock is a named, time-bounded exclusive lease on a file path.
// At most one non-expired lock exists per path.
type FileLock struct {
	// Path is the locked file path and the unique key of the lease.
	Path string `json:"path"`
	// AgentID is the agent holding the lease.
	AgentID string `json:"agent_id"`
	// TaskID is the task on whose behalf the lease is held.
	TaskID string `json:"task_id"`
	// AcquiredAt is when the lease was taken or last seized.
	AcquiredAt time.Time `json:"acquired_at"`
	// ExpiresAt is when the lease lapses. Nil means the lease is indefinite.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired returns true if the lease has lapsed at the given instant.
// Indefinite leases never expire.
func (l *FileLock) Expired(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return !now.Before(*l.ExpiresAt)
}

// HeldBy returns true if the lease belongs to the given agent.
func (l *FileLock) HeldBy(agentID string) bool {
	return l.AgentID == agentID
}
