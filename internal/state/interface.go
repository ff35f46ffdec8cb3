// Package state provides SQLite-based persistence for the orchestration engine.
package state

import (
	"io"
	"time"

	"github.com/codefleet/foreman/pkg/models"
)

// TaskStore handles task persistence.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	DeleteTask(id string) error
	UpdateTaskAssessment(id string, rule float64, secondary *float64, final float64, method models.AssessmentMethod) error
	NextPendingTask() (*models.Task, error)
	ListTasksByStatus(status models.TaskStatus) ([]models.Task, error)
	ListHumanWaitTasks() ([]models.Task, error)
	ListSubtasks(parentID string) ([]models.Task, error)
	CountTasksByStatus() (map[models.TaskStatus]int, error)
}

// AgentStore handles agent persistence.
type AgentStore interface {
	UpsertAgent(a *models.Agent) error
	GetAgent(id string) (*models.Agent, error)
	UpdateAgentStatus(id string, status models.AgentStatus, currentTaskID string) error
	ListAgents() ([]models.Agent, error)
	ListIdleAgents() ([]models.Agent, error)
	FindAgentByCapability(capability models.Capability) (*models.Agent, error)
}

// LockStore handles file lock persistence.
type LockStore interface {
	TryAcquireLock(path, agentID, taskID string, expiresAt *time.Time, now time.Time) (LockOutcome, *models.FileLock, error)
	ReleaseLock(path, agentID string) (bool, error)
	GetLock(path string) (*models.FileLock, error)
	ListLocks() ([]models.FileLock, error)
	ListLocksForTask(taskID string) ([]models.FileLock, error)
	DeleteLocksForTask(taskID string) (int64, error)
	DeleteLocksForAgent(agentID string) (int64, error)
	DeleteExpiredLocks(now time.Time) (int64, error)
}

// TransitionStore handles the guarded multi-row transitions that keep
// task and agent state mutually consistent.
type TransitionStore interface {
	AssignTaskToAgent(taskID, agentID string) error
	MarkTaskStarted(taskID string) error
	MarkTaskNeedsHuman(taskID, reason string, now time.Time) error
	ReleaseTask(taskID string, rel TaskRelease) error
	RequeueTask(taskID string) error
	EscalateTaskUnassigned(taskID, reason string, now time.Time) error
	MarkTaskAbortedUnassigned(taskID, reason string, now time.Time) error
	HandoffTask(taskID, fromAgentID, toAgentID string) error
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the full persistence interface the engine works against.
// It composes focused sub-interfaces so components can depend on only
// what they use.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	AgentStore
	LockStore
	TransitionStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store           = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ TaskStore       = (*DB)(nil)
	_ AgentStore      = (*DB)(nil)
	_ LockStore       = (*DB)(nil)
	_ TransitionStore = (*DB)(nil)
)
