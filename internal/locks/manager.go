// Package locks implements the file lock manager: named, time-bounded
// exclusive leases on file paths so two agents never write the same file
// concurrently. Lease state lives in the shared store; the store's
// transactional isolation arbitrates concurrent acquisitions across
// engine instances.
package locks

import (
	"fmt"
	"time"

	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

// DefaultTTL is the lease duration used when the caller does not specify one.
const DefaultTTL = models.DefaultLockTTLMinutes * time.Minute

// AcquireResult reports what an Acquire call did. Denial is a normal
// branch the caller must handle, not an error.
type AcquireResult struct {
	// Granted is true when the caller now holds the lease.
	Granted bool
	// Outcome details how the lease was obtained (or why not).
	Outcome state.LockOutcome
	// Lock is the resulting lease when granted, or the blocking lease
	// when denied.
	Lock *models.FileLock
}

// Manager grants and releases file locks against the shared store.
type Manager struct {
	store  state.LockStore
	events events.Publisher

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a lock manager. A nil publisher disables conflict
// notifications.
func NewManager(store state.LockStore, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		store:  store,
		events: publisher,
		now:    time.Now,
	}
}

// Acquire takes the lease on path for the given agent and task. The TTL
// defaults to DefaultTTL when zero; a negative TTL requests an indefinite
// lease. Re-acquisition by the holder extends the lease; an expired lease
// is seized from its previous holder; a live lease held by another agent
// denies the call and emits a conflict notification.
func (m *Manager) Acquire(path, agentID, taskID string, ttl time.Duration) (*AcquireResult, error) {
	if path == "" {
		return nil, fmt.Errorf("acquire lock: empty path")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}

	now := m.now()
	var expiresAt *time.Time
	if ttl > 0 {
		e := now.Add(ttl)
		expiresAt = &e
	}

	outcome, lock, err := m.store.TryAcquireLock(path, agentID, taskID, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}

	if outcome == state.LockDenied {
		m.events.Publish(events.Event{
			Type:      events.EventLockConflict,
			TaskID:    taskID,
			AgentID:   agentID,
			Path:      path,
			Message:   fmt.Sprintf("lock on %s held by %s", path, lock.AgentID),
			Timestamp: now,
			Metadata: map[string]any{
				"holder_agent_id": lock.AgentID,
				"holder_task_id":  lock.TaskID,
			},
		})
		return &AcquireResult{Granted: false, Outcome: outcome, Lock: lock}, nil
	}

	return &AcquireResult{Granted: true, Outcome: outcome, Lock: lock}, nil
}

// Release drops the lease on path if the named agent holds it. Returns
// false when the agent is not the holder; another agent's lease is never
// released.
func (m *Manager) Release(path, agentID string) (bool, error) {
	released, err := m.store.ReleaseLock(path, agentID)
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", path, err)
	}
	return released, nil
}

// ReleaseAllForTask drops every lease held on behalf of a task. Invoked
// on task termination.
func (m *Manager) ReleaseAllForTask(taskID string) (int64, error) {
	count, err := m.store.DeleteLocksForTask(taskID)
	if err != nil {
		return 0, fmt.Errorf("release locks for task %s: %w", taskID, err)
	}
	return count, nil
}

// ReleaseAllForAgent drops every lease held by an agent. Invoked when an
// agent goes offline.
func (m *Manager) ReleaseAllForAgent(agentID string) (int64, error) {
	count, err := m.store.DeleteLocksForAgent(agentID)
	if err != nil {
		return 0, fmt.Errorf("release locks for agent %s: %w", agentID, err)
	}
	return count, nil
}

// IsLocked reports whether path is held by a live lease. An expired
// lease counts as unlocked. When excludingAgentID is non-empty, that
// agent's own lease also counts as unlocked, so an agent never blocks
// on its own hold.
func (m *Manager) IsLocked(path, excludingAgentID string) (bool, error) {
	lock, err := m.store.GetLock(path)
	if err == state.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", path, err)
	}

	if lock.Expired(m.now()) {
		return false, nil
	}
	if excludingAgentID != "" && lock.HeldBy(excludingAgentID) {
		return false, nil
	}
	return true, nil
}

// LockedFiles returns all current leases.
func (m *Manager) LockedFiles() ([]models.FileLock, error) {
	return m.store.ListLocks()
}

// SweepExpired deletes every lease whose expiry has passed. Acquisition-
// time seizure alone would leave stale rows visible to IsLocked queries
// between expiry and the next acquisition attempt, so this runs on a
// fixed interval as well.
func (m *Manager) SweepExpired() (int64, error) {
	count, err := m.store.DeleteExpiredLocks(m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired locks: %w", err)
	}
	return count, nil
}
