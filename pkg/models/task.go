package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting to be routed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned indicates the task has been bound to an agent.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusInProgress indicates the assigned agent is executing the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusNeedsHuman indicates the task is waiting on human input.
	TaskStatusNeedsHuman TaskStatus = "needs_human"
	// TaskStatusAborted indicates the task was cancelled.
	TaskStatusAborted TaskStatus = "aborted"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusNeedsHuman, TaskStatusAborted:
		return true
	default:
		return false
	}
}

// Active returns true if a task in this status is bound to an agent.
// The engine maintains the invariant that AssignedAgentID is non-empty
// exactly when Active is true.
func (s TaskStatus) Active() bool {
	switch s {
	case TaskStatusAssigned, TaskStatusInProgress, TaskStatusNeedsHuman:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further automated transitions are expected.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusAborted:
		return true
	default:
		return false
	}
}

// TaskKind classifies the work a task represents.
type TaskKind string

const (
	// TaskKindCode is implementation work.
	TaskKindCode TaskKind = "code"
	// TaskKindTest is test writing or verification work.
	TaskKindTest TaskKind = "test"
	// TaskKindReview is code review work.
	TaskKindReview TaskKind = "review"
	// TaskKindDebug is failure investigation work.
	TaskKindDebug TaskKind = "debug"
	// TaskKindRefactor is restructuring work.
	TaskKindRefactor TaskKind = "refactor"
)

// Valid returns true if the kind is a known value.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindCode, TaskKindTest, TaskKindReview, TaskKindDebug, TaskKindRefactor:
		return true
	default:
		return false
	}
}

// AssessmentMethod records how a task's final complexity score was produced.
type AssessmentMethod string

const (
	// AssessmentRouterOnly means only the rule-based score was used.
	AssessmentRouterOnly AssessmentMethod = "router_only"
	// AssessmentSecondary means a secondary model opinion was authoritative.
	AssessmentSecondary AssessmentMethod = "secondary"
)

// DefaultMaxIterations is the number of execution attempts a task gets
// before it is considered exhausted.
const DefaultMaxIterations = 10

// DefaultHumanTimeoutMinutes is how long a task may wait on human input
// before the escalation sweeper reassigns it.
const DefaultHumanTimeoutMinutes = 15

// Task represents a unit of work in the backlog.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// ParentID is the ID of the parent task, if this is a decomposed subtask.
	ParentID string `json:"parent_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed instructions for the task.
	Description string `json:"description,omitempty"`
	// Kind classifies the task (code, test, review, debug, refactor).
	Kind TaskKind `json:"kind"`
	// RequiredCapability pins the task to agents of one capability, if set.
	RequiredCapability Capability `json:"required_capability,omitempty"`
	// Priority orders the backlog, 1 (lowest) to 10 (highest).
	Priority int `json:"priority"`
	// Status is the current lifecycle state of the task.
	Status TaskStatus `json:"status"`
	// CurrentIteration counts execution attempts so far.
	CurrentIteration int `json:"current_iteration"`
	// MaxIterations caps execution attempts before escalation.
	MaxIterations int `json:"max_iterations"`
	// AssignedAgentID is the agent currently bound to this task, if any.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// RuleScore is the deterministic rule-based complexity score.
	RuleScore float64 `json:"rule_score,omitempty"`
	// SecondaryScore is the secondary model's complexity opinion, if obtained.
	SecondaryScore *float64 `json:"secondary_score,omitempty"`
	// FinalScore is the complexity score the router acted on.
	FinalScore float64 `json:"final_score,omitempty"`
	// AssessmentMethod records which assessment produced FinalScore.
	AssessmentMethod AssessmentMethod `json:"assessment_method,omitempty"`
	// HumanWaitStartedAt is when the task entered needs_human, if it did.
	HumanWaitStartedAt *time.Time `json:"human_wait_started_at,omitempty"`
	// HumanTimeoutMinutes is how long to wait on a human before escalating.
	HumanTimeoutMinutes int `json:"human_timeout_minutes"`
	// Escalated marks that the task has been through a sweeper handoff or
	// has exhausted its automated retries.
	Escalated bool `json:"escalated,omitempty"`
	// Output holds the execution runtime's result text.
	Output string `json:"output,omitempty"`
	// Error contains the failure reason if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Text returns the combined title and description used for keyword scoring.
func (t *Task) Text() string {
	if t.Description == "" {
		return t.Title
	}
	return t.Title + " " + t.Description
}

// IterationsRemaining returns true if the task may be retried.
func (t *Task) IterationsRemaining() bool {
	return t.CurrentIteration < t.MaxIterations
}

// HumanWaitDeadline returns the time at which the escalation sweeper may
// act on this task. The zero time is returned when the task is not waiting.
func (t *Task) HumanWaitDeadline() time.Time {
	if t.HumanWaitStartedAt == nil {
		return time.Time{}
	}
	return t.HumanWaitStartedAt.Add(time.Duration(t.HumanTimeoutMinutes) * time.Minute)
}

// ExecutionMetrics describes what the execution runtime reports back
// when a task run finishes.
type ExecutionMetrics struct {
	// CreditsUsed is the monetary credit consumption for the run.
	CreditsUsed float64 `json:"credits_used"`
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
	// Iterations is the number of internal loop iterations the runtime made.
	Iterations int `json:"iterations"`
}
