package models

// RoutingDecision is the ephemeral result of routing a task. It is not
// persisted as its own entity; the complexity figures are projected onto
// the task when the decision is committed.
type RoutingDecision struct {
	// TaskID is the task the decision applies to.
	TaskID string `json:"task_id"`
	// AgentID is the chosen agent. Empty when Escalate is set.
	AgentID string `json:"agent_id,omitempty"`
	// Tier is the execution tier the task should run at.
	Tier Tier `json:"tier"`
	// Reason is a human-readable justification for the choice.
	Reason string `json:"reason"`
	// Confidence is how confident the router is in the choice (0.0-1.0).
	Confidence float64 `json:"confidence"`
	// FallbackAgentID is a backup agent should the primary be unavailable.
	FallbackAgentID string `json:"fallback_agent_id,omitempty"`
	// EstimatedCost is the projected credit cost of one run at Tier.
	EstimatedCost float64 `json:"estimated_cost"`
	// RuleScore is the rule-based complexity score that drove the choice.
	RuleScore float64 `json:"rule_score"`
	// SecondaryScore is the secondary opinion, if one was obtained.
	SecondaryScore *float64 `json:"secondary_score,omitempty"`
	// FinalScore is the authoritative complexity score.
	FinalScore float64 `json:"final_score"`
	// AssessmentMethod records which assessment produced FinalScore.
	AssessmentMethod AssessmentMethod `json:"assessment_method"`
	// Escalate indicates the task should go to a human instead of an agent.
	Escalate bool `json:"escalate,omitempty"`
}

// FixDecision is the retry policy consulted after a task failure.
type FixDecision struct {
	// Tier is the tier the retry should run at.
	Tier Tier `json:"tier"`
	// Escalate indicates automated retries are exhausted.
	Escalate bool `json:"escalate"`
	// Reason explains the decision.
	Reason string `json:"reason"`
}

// DecompositionDecision picks the tier used to break a task into subtasks.
type DecompositionDecision struct {
	// Tier is the tier the decomposition should run at.
	Tier Tier `json:"tier"`
	// Reason explains the decision.
	Reason string `json:"reason"`
}

// ReviewDecision batches completed tasks for review.
type ReviewDecision struct {
	// TaskIDs are the tasks to review.
	TaskIDs []string `json:"task_ids"`
	// Tier is the tier the review should run at.
	Tier Tier `json:"tier"`
	// EstimatedCost is the projected credit cost for the whole batch.
	EstimatedCost float64 `json:"estimated_cost"`
}
