// Package escalate reassigns tasks stuck waiting on human input past
// their timeout. The sweep is a one-shot handoff: the task moves to a
// different agent once, and a second timeout is left to whatever next
// observes the task.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

// DefaultInterval is how often the sweep runs.
const DefaultInterval = 60 * time.Second

// Store is the persistence surface the sweeper needs.
type Store interface {
	state.TaskStore
	state.AgentStore
	state.TransitionStore
}

// Sweeper scans for human-blocked tasks past their timeout and hands
// them to another agent.
type Sweeper struct {
	store  Store
	events events.Publisher

	now func() time.Time
}

// NewSweeper creates an escalation sweeper. A nil publisher disables
// alert emission.
func NewSweeper(store Store, publisher events.Publisher) *Sweeper {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Sweeper{
		store:  store,
		events: publisher,
		now:    time.Now,
	}
}

// SweepOnce runs a single pass. It returns the number of tasks handed
// off. A task past its deadline with no idle agent to take it is parked
// with a no-capacity alert; that is a legitimate state, not an error.
func (s *Sweeper) SweepOnce() (int, error) {
	waiting, err := s.store.ListHumanWaitTasks()
	if err != nil {
		return 0, fmt.Errorf("list human-wait tasks: %w", err)
	}

	handoffs := 0
	for i := range waiting {
		task := &waiting[i]
		now := s.now()
		if now.Before(task.HumanWaitDeadline()) {
			continue
		}

		candidate, err := s.pickIdleAgent(task.AssignedAgentID)
		if err != nil {
			return handoffs, err
		}
		if candidate == nil {
			s.events.Publish(events.Event{
				Type:      events.EventEscalationNoCapacity,
				TaskID:    task.ID,
				AgentID:   task.AssignedAgentID,
				Message:   fmt.Sprintf("task %s exceeded its %dm human timeout but no other agent is idle", task.ID, task.HumanTimeoutMinutes),
				Timestamp: now,
			})
			continue
		}

		err = s.store.HandoffTask(task.ID, task.AssignedAgentID, candidate.ID)
		if errors.Is(err, state.ErrConflict) {
			// Lost a race with a human resolution or another instance's
			// sweep; the task is no longer ours to move.
			continue
		}
		if err != nil {
			return handoffs, fmt.Errorf("handoff task %s: %w", task.ID, err)
		}

		handoffs++
		s.events.Publish(events.Event{
			Type:      events.EventEscalationTransfer,
			TaskID:    task.ID,
			AgentID:   candidate.ID,
			Message:   fmt.Sprintf("task %s reassigned from %s to %s after %dm human timeout", task.ID, task.AssignedAgentID, candidate.ID, task.HumanTimeoutMinutes),
			Timestamp: now,
			Metadata: map[string]any{
				"from_agent_id": task.AssignedAgentID,
				"to_agent_id":   candidate.ID,
			},
		})
	}
	return handoffs, nil
}

// pickIdleAgent returns the first idle agent other than the current
// holder, or nil when the fleet has no capacity. Re-queried per task so
// earlier handoffs in the same sweep are accounted for.
func (s *Sweeper) pickIdleAgent(excludeAgentID string) (*models.Agent, error) {
	idle, err := s.store.ListIdleAgents()
	if err != nil {
		return nil, fmt.Errorf("list idle agents: %w", err)
	}
	for i := range idle {
		if idle[i].ID != excludeAgentID {
			return &idle[i], nil
		}
	}
	return nil, nil
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.SweepOnce()
			if err != nil {
				log.Printf("escalation sweep: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("escalation sweep: reassigned %d task(s)", count)
			}
		}
	}
}
