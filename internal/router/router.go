package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codefleet/foreman/internal/assess"
	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

// ErrNoAgentsAvailable is returned when no agent of any kind is idle and
// no supervisory agent exists either. Callers surface it as a capacity
// condition, not a server error.
var ErrNoAgentsAvailable = errors.New("no agents available")

// Store is the persistence surface the router needs.
type Store interface {
	state.TaskStore
	state.AgentStore
	state.TransitionStore
}

// Router routes tasks to agents and execution tiers. Branch evaluation
// order is significant: an explicit capability requirement outranks
// complexity-based routing, and a retried task's fix cycle is consulted
// only after general routing has found no match.
type Router struct {
	store    Store
	assessor *assess.Assessor
	events   events.Publisher

	now func() time.Time
}

// New creates a Router. A nil publisher disables event emission.
func New(store Store, assessor *assess.Assessor, publisher events.Publisher) *Router {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Router{
		store:    store,
		assessor: assessor,
		events:   publisher,
		now:      time.Now,
	}
}

// Route scores the task, persists the assessment figures, and produces a
// routing decision. It fails with ErrNoAgentsAvailable only when no agent
// is idle and no supervisory agent exists.
func (r *Router) Route(ctx context.Context, task *models.Task) (*models.RoutingDecision, error) {
	assessment := r.assessor.Assess(ctx, task)
	if err := r.store.UpdateTaskAssessment(task.ID, assessment.RuleScore, assessment.SecondaryScore, assessment.FinalScore, assessment.Method); err != nil {
		return nil, fmt.Errorf("persist assessment for task %s: %w", task.ID, err)
	}
	task.RuleScore = assessment.RuleScore
	task.SecondaryScore = assessment.SecondaryScore
	task.FinalScore = assessment.FinalScore
	task.AssessmentMethod = assessment.Method

	idle, err := r.store.ListIdleAgents()
	if err != nil {
		return nil, fmt.Errorf("list idle agents: %w", err)
	}

	decision := &models.RoutingDecision{
		TaskID:           task.ID,
		RuleScore:        assessment.RuleScore,
		SecondaryScore:   assessment.SecondaryScore,
		FinalScore:       assessment.FinalScore,
		AssessmentMethod: assessment.Method,
	}
	score := assessment.FinalScore

	// Branch 1: nobody idle. The supervisory agent absorbs queue
	// management regardless of its own idle state.
	if len(idle) == 0 {
		planner, err := r.store.FindAgentByCapability(models.CapabilityCTO)
		if err == state.ErrNotFound {
			return nil, ErrNoAgentsAvailable
		}
		if err != nil {
			return nil, fmt.Errorf("find supervisory agent: %w", err)
		}
		decision.AgentID = planner.ID
		decision.Tier = models.TierHighCost
		decision.Confidence = 0.8
		decision.Reason = "no idle agents, routed to supervisor for queue management"
		decision.EstimatedCost = TierCost(decision.Tier)
		return decision, nil
	}

	// Branch 2: explicit capability requirement outranks complexity.
	if task.RequiredCapability != "" {
		if agent := firstIdleWithCapability(idle, task.RequiredCapability); agent != nil {
			decision.AgentID = agent.ID
			decision.Tier = tierForComplexity(score)
			decision.Confidence = 1.0
			decision.Reason = fmt.Sprintf("task requires %s capability", task.RequiredCapability)
			decision.EstimatedCost = TierCost(decision.Tier)
			decision.FallbackAgentID = r.fallbackAgent(idle, agent.ID, decision.Tier)
			return decision, nil
		}
	}

	// Branch 3: low complexity runs free.
	if score < complexityPaidThreshold {
		if agent := firstIdleWithCapability(idle, models.CapabilityCoder); agent != nil {
			decision.AgentID = agent.ID
			decision.Tier = models.TierLocal
			decision.Confidence = 0.85
			decision.Reason = fmt.Sprintf("complexity %.1f, local tier sufficient", score)
			decision.EstimatedCost = TierCost(decision.Tier)
			decision.FallbackAgentID = r.fallbackAgent(idle, agent.ID, decision.Tier)
			return decision, nil
		}
	}

	// Branch 4: medium-or-higher complexity prefers a verification agent;
	// a coder may substitute but the paid tier is kept so quality is not
	// silently downgraded.
	if score >= complexityPaidThreshold {
		if agent := firstIdleWithCapability(idle, models.CapabilityQA); agent != nil {
			decision.AgentID = agent.ID
			decision.Tier = models.TierLowCost
			decision.Confidence = 0.9
			decision.Reason = fmt.Sprintf("complexity %.1f, verification agent at paid tier", score)
			decision.EstimatedCost = TierCost(decision.Tier)
			decision.FallbackAgentID = r.fallbackAgent(idle, agent.ID, decision.Tier)
			return decision, nil
		}
		if agent := firstIdleWithCapability(idle, models.CapabilityCoder); agent != nil {
			decision.AgentID = agent.ID
			decision.Tier = models.TierLowCost
			decision.Confidence = 0.75
			decision.Reason = fmt.Sprintf("complexity %.1f, no verification agent idle, coder at paid tier", score)
			decision.EstimatedCost = TierCost(decision.Tier)
			decision.FallbackAgentID = r.fallbackAgent(idle, agent.ID, decision.Tier)
			return decision, nil
		}
	}

	// Branch 5: retried task with no general match consults the fix cycle.
	if task.CurrentIteration > 0 {
		fix := GetFixDecision(task.CurrentIteration)
		if fix.Escalate {
			decision.Escalate = true
			decision.Confidence = 1.0
			decision.Reason = fix.Reason
			return decision, nil
		}
		agent := idle[0]
		decision.AgentID = agent.ID
		decision.Tier = fix.Tier
		decision.Confidence = 0.6
		decision.Reason = fix.Reason
		decision.EstimatedCost = TierCost(decision.Tier)
		decision.FallbackAgentID = r.fallbackAgent(idle, agent.ID, decision.Tier)
		return decision, nil
	}

	// Branch 6: any idle agent, tier by complexity.
	agent := idle[0]
	decision.AgentID = agent.ID
	decision.Tier = tierForComplexity(score)
	decision.Confidence = 0.5
	decision.Reason = fmt.Sprintf("no capability match, first idle agent at complexity %.1f", score)
	decision.EstimatedCost = TierCost(decision.Tier)
	decision.FallbackAgentID = r.fallbackAgent(idle, agent.ID, decision.Tier)
	return decision, nil
}

// AutoAssignNext pulls the highest-priority, oldest pending task, routes
// it, and commits the assignment atomically. When the fleet is fully
// busy the supervisor referral is returned uncommitted and the task
// stays pending. A commit that loses a race to another engine instance
// returns state.ErrConflict with no visible side effects on agent state.
func (r *Router) AutoAssignNext(ctx context.Context) (*models.RoutingDecision, error) {
	task, err := r.store.NextPendingTask()
	if err != nil {
		return nil, err
	}

	decision, err := r.Route(ctx, task)
	if err != nil {
		return nil, err
	}

	if decision.Escalate {
		if err := r.store.EscalateTaskUnassigned(task.ID, decision.Reason, r.now()); err != nil {
			return nil, fmt.Errorf("escalate task %s: %w", task.ID, err)
		}
		r.events.Publish(events.Event{
			Type:      events.EventTaskFailed,
			TaskID:    task.ID,
			Message:   decision.Reason,
			Timestamp: r.now(),
		})
		return decision, nil
	}

	agent, err := r.store.GetAgent(decision.AgentID)
	if err != nil {
		return nil, fmt.Errorf("read agent %s: %w", decision.AgentID, err)
	}
	if !agent.Idle() {
		// A fully busy fleet routes to the supervisor as a referral.
		// Nothing can be committed until an agent frees up, so the
		// decision stands as a recommendation and the task stays
		// pending for the next pass.
		return decision, nil
	}

	if err := r.store.AssignTaskToAgent(task.ID, decision.AgentID); err != nil {
		return nil, fmt.Errorf("commit assignment of task %s to agent %s: %w", task.ID, decision.AgentID, err)
	}
	r.events.Publish(events.Event{
		Type:      events.EventTaskAssigned,
		TaskID:    task.ID,
		AgentID:   decision.AgentID,
		Message:   decision.Reason,
		Timestamp: r.now(),
		Metadata: map[string]any{
			"tier":       string(decision.Tier),
			"confidence": decision.Confidence,
		},
	})
	return decision, nil
}

// firstIdleWithCapability returns the first idle agent of the given
// capability. The idle list is ordered by agent ID, so the pick is
// deterministic.
func firstIdleWithCapability(idle []models.Agent, capability models.Capability) *models.Agent {
	for i := range idle {
		if idle[i].Capability == capability {
			return &idle[i]
		}
	}
	return nil
}

// fallbackAgent picks a backup agent for the decision. When the primary
// pick runs on the free tier, a verification agent is preferred as the
// backup; otherwise any other idle agent serves.
func (r *Router) fallbackAgent(idle []models.Agent, primaryID string, tier models.Tier) string {
	if !tier.Paid() {
		for i := range idle {
			if idle[i].ID != primaryID && idle[i].Capability == models.CapabilityQA {
				return idle[i].ID
			}
		}
	}
	for i := range idle {
		if idle[i].ID != primaryID {
			return idle[i].ID
		}
	}
	return ""
}
