// Package lifecycle owns the task state machine. Every transition that
// changes the task/agent binding goes through one of the Manager's
// operations; no other component writes task or agent status directly.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

// ErrInvalidTransition is returned when an operation is attempted from a
// state it is not valid in. The underlying state is left unchanged.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Store is the persistence surface the lifecycle manager needs.
type Store interface {
	state.TaskStore
	state.AgentStore
	state.LockStore
	state.TransitionStore
}

// Manager is the authoritative task state machine.
type Manager struct {
	store  Store
	events events.Publisher

	now func() time.Time
}

// NewManager creates a lifecycle manager. A nil publisher disables event
// emission.
func NewManager(store Store, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		store:  store,
		events: publisher,
		now:    time.Now,
	}
}

// AssignTask binds a pending task to an idle agent. Task status and agent
// status move together in one unit of work.
func (m *Manager) AssignTask(taskID, agentID string) error {
	if err := m.store.AssignTaskToAgent(taskID, agentID); err != nil {
		return m.wrap(err, "assign task %s to %s", taskID, agentID)
	}
	m.publish(events.EventTaskAssigned, taskID, agentID, "")
	return nil
}

// HandleTaskStart records that the assigned agent began executing.
func (m *Manager) HandleTaskStart(taskID string) error {
	if err := m.store.MarkTaskStarted(taskID); err != nil {
		return m.wrap(err, "start task %s", taskID)
	}
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("read started task %s: %w", taskID, err)
	}
	m.publish(events.EventTaskStarted, taskID, task.AssignedAgentID, "")
	return nil
}

// HandleTaskCompletion finishes a task successfully: the task becomes
// completed, its locks are released, and the agent returns to idle with
// its stats updated, all in the same unit of work. Only a running task
// (in_progress, or needs_human answered by a human) can complete; a task
// that is merely assigned has never produced work to report.
func (m *Manager) HandleTaskCompletion(taskID, output string, metrics models.ExecutionMetrics) error {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("read task %s: %w", taskID, err)
	}
	agentID := task.AssignedAgentID

	err = m.store.ReleaseTask(taskID, state.TaskRelease{
		Status:         models.TaskStatusCompleted,
		From:           []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusNeedsHuman},
		Output:         output,
		IterationDelta: 1,
		Credits:        metrics.CreditsUsed,
		CompletedAt:    m.now(),
	})
	if err != nil {
		return m.wrap(err, "complete task %s", taskID)
	}
	m.publish(events.EventTaskCompleted, taskID, agentID, "")
	return nil
}

// HandleTaskFailure records a failed execution. The iteration counter
// advances; when it reaches the task's maximum, the failure is terminal
// and the task is flagged for human attention. Either way the agent is
// freed and the task's locks are released. Like completion, failure is
// only reachable from a running task.
func (m *Manager) HandleTaskFailure(taskID, reason string, metrics models.ExecutionMetrics) error {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("read task %s: %w", taskID, err)
	}
	agentID := task.AssignedAgentID
	exhausted := task.CurrentIteration+1 >= task.MaxIterations

	err = m.store.ReleaseTask(taskID, state.TaskRelease{
		Status:         models.TaskStatusFailed,
		From:           []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusNeedsHuman},
		Error:          reason,
		Escalated:      exhausted,
		IterationDelta: 1,
		Credits:        metrics.CreditsUsed,
		CompletedAt:    m.now(),
	})
	if err != nil {
		return m.wrap(err, "fail task %s", taskID)
	}

	msg := reason
	if exhausted {
		msg = fmt.Sprintf("%s (retries exhausted, flagged for human review)", reason)
	}
	m.publish(events.EventTaskFailed, taskID, agentID, msg)
	return nil
}

// RequestHumanInput parks an in_progress task to wait for a human. The
// agent stays bound so context is not lost while waiting.
func (m *Manager) RequestHumanInput(taskID, reason string) error {
	if err := m.store.MarkTaskNeedsHuman(taskID, reason, m.now()); err != nil {
		return m.wrap(err, "park task %s for human input", taskID)
	}
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("read parked task %s: %w", taskID, err)
	}
	m.publish(events.EventTaskNeedsHuman, taskID, task.AssignedAgentID, reason)
	return nil
}

// AbortTask cancels a task. It is idempotent: aborting an already
// terminal task is a no-op. Abort is a state-machine-side change and does
// not wait for the execution runtime to acknowledge anything: locks are
// released and the agent freed even if the runtime is unresponsive.
func (m *Manager) AbortTask(taskID, reason string) error {
	task, err := m.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("read task %s: %w", taskID, err)
	}

	switch {
	case task.Status.Terminal():
		return nil
	case task.Status == models.TaskStatusFailed && (task.Escalated || !task.IterationsRemaining()):
		// A failure that exhausted its retries or was escalated is
		// terminal for abort purposes; the human-attention record
		// must survive.
		return nil
	case task.Status.Active():
		agentID := task.AssignedAgentID
		// Any active status may be aborted, including assigned tasks
		// that never started.
		err = m.store.ReleaseTask(taskID, state.TaskRelease{
			Status:      models.TaskStatusAborted,
			Error:       reason,
			CompletedAt: m.now(),
		})
		if err != nil {
			return m.wrap(err, "abort task %s", taskID)
		}
		m.publish(events.EventTaskAborted, taskID, agentID, reason)
		return nil
	default:
		if err := m.store.MarkTaskAbortedUnassigned(taskID, reason, m.now()); err != nil {
			return m.wrap(err, "abort task %s", taskID)
		}
		m.publish(events.EventTaskAborted, taskID, "", reason)
		return nil
	}
}

// RetryTask loops a failed task with iterations remaining back to pending
// for another routing pass.
func (m *Manager) RetryTask(taskID string) error {
	if err := m.store.RequeueTask(taskID); err != nil {
		return m.wrap(err, "retry task %s", taskID)
	}
	m.publish(events.EventTaskRetried, taskID, "", "")
	return nil
}

// SetAgentOffline takes an agent out of the fleet and releases every lock
// it holds. An agent bound to a task cannot go offline; abort or finish
// the task first.
func (m *Manager) SetAgentOffline(agentID string) error {
	agent, err := m.store.GetAgent(agentID)
	if err != nil {
		return fmt.Errorf("read agent %s: %w", agentID, err)
	}
	if agent.CurrentTaskID != "" {
		return fmt.Errorf("agent %s is bound to task %s: %w", agentID, agent.CurrentTaskID, ErrInvalidTransition)
	}
	if err := m.store.UpdateAgentStatus(agentID, models.AgentStatusOffline, ""); err != nil {
		return fmt.Errorf("set agent %s offline: %w", agentID, err)
	}
	if _, err := m.store.DeleteLocksForAgent(agentID); err != nil {
		return fmt.Errorf("release locks for offline agent %s: %w", agentID, err)
	}
	m.publish(events.EventAgentStatusChanged, "", agentID, string(models.AgentStatusOffline))
	return nil
}

// wrap translates store conflicts into lifecycle violations so callers
// see one error class for invalid transitions.
func (m *Manager) wrap(err error, format string, args ...any) error {
	if errors.Is(err, state.ErrConflict) {
		return fmt.Errorf(format+": %w: %v", append(args, ErrInvalidTransition, err)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (m *Manager) publish(eventType events.EventType, taskID, agentID, message string) {
	m.events.Publish(events.Event{
		Type:      eventType,
		TaskID:    taskID,
		AgentID:   agentID,
		Message:   message,
		Timestamp: m.now(),
	})
}
