package escalate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

func setupSweeper(t *testing.T) (*Sweeper, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "escalate.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSweeper(db, nil), db
}

func seedAgent(t *testing.T, db *state.DB, id string, status models.AgentStatus, taskID string) {
	t.Helper()
	err := db.UpsertAgent(&models.Agent{
		ID:            id,
		Capability:    models.CapabilityCoder,
		Status:        status,
		CurrentTaskID: taskID,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("upsert agent: %v", err)
	}
}

// seedWaitingTask creates a task parked in needs_human on the given
// agent, with the wait clock started at waitStart.
func seedWaitingTask(t *testing.T, db *state.DB, id, agentID string, timeoutMinutes int, waitStart time.Time) {
	t.Helper()
	task := &models.Task{
		ID:                  id,
		Title:               "stuck task",
		Kind:                models.TaskKindCode,
		Priority:            5,
		Status:              models.TaskStatusPending,
		MaxIterations:       models.DefaultMaxIterations,
		HumanTimeoutMinutes: timeoutMinutes,
		CreatedAt:           waitStart,
	}
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	seedAgent(t, db, agentID, models.AgentStatusIdle, "")
	if err := db.AssignTaskToAgent(id, agentID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := db.MarkTaskStarted(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.MarkTaskNeedsHuman(id, "waiting on human", waitStart); err != nil {
		t.Fatalf("park: %v", err)
	}
}

type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(e events.Event) {
	c.events = append(c.events, e)
}

func TestSweepBeforeDeadlineUntouched(t *testing.T) {
	s, db := setupSweeper(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedWaitingTask(t, db, "t1", "coder-01", 30, base)
	seedAgent(t, db, "coder-02", models.AgentStatusIdle, "")

	s.now = func() time.Time { return base.Add(29 * time.Minute) }
	count, err := s.SweepOnce()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 0 {
		t.Errorf("handoffs = %d, want 0 before the deadline", count)
	}

	task, _ := db.GetTask("t1")
	if task.Status != models.TaskStatusNeedsHuman || task.AssignedAgentID != "coder-01" {
		t.Errorf("task touched before deadline: %+v", task)
	}
}

func TestSweepHandsOffAfterDeadline(t *testing.T) {
	s, db := setupSweeper(t)
	pub := &capturePublisher{}
	s.events = pub
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedWaitingTask(t, db, "t1", "coder-01", 30, base)
	seedAgent(t, db, "coder-02", models.AgentStatusIdle, "")

	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	count, err := s.SweepOnce()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("handoffs = %d, want 1", count)
	}

	task, _ := db.GetTask("t1")
	if task.Status != models.TaskStatusAssigned || task.AssignedAgentID != "coder-02" {
		t.Errorf("task = status %s agent %s, want assigned to coder-02", task.Status, task.AssignedAgentID)
	}
	if task.HumanWaitStartedAt != nil {
		t.Error("wait timestamp not cleared")
	}
	if !task.Escalated {
		t.Error("escalated flag not set")
	}

	oldAgent, _ := db.GetAgent("coder-01")
	if !oldAgent.Idle() || oldAgent.CurrentTaskID != "" {
		t.Errorf("old agent = %+v, want idle and unbound", oldAgent)
	}
	newAgent, _ := db.GetAgent("coder-02")
	if newAgent.Status != models.AgentStatusBusy || newAgent.CurrentTaskID != "t1" {
		t.Errorf("new agent = %+v, want busy on t1", newAgent)
	}

	if len(pub.events) != 1 || pub.events[0].Type != events.EventEscalationTransfer {
		t.Fatalf("events = %+v, want one transfer alert", pub.events)
	}
	if pub.events[0].Metadata["from_agent_id"] != "coder-01" || pub.events[0].Metadata["to_agent_id"] != "coder-02" {
		t.Errorf("transfer metadata = %v", pub.events[0].Metadata)
	}
}

func TestSweepNoCapacityParksTask(t *testing.T) {
	s, db := setupSweeper(t)
	pub := &capturePublisher{}
	s.events = pub
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedWaitingTask(t, db, "t1", "coder-01", 30, base)

	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	count, err := s.SweepOnce()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 0 {
		t.Errorf("handoffs = %d, want 0 with no capacity", count)
	}

	task, _ := db.GetTask("t1")
	if task.Status != models.TaskStatusNeedsHuman || task.AssignedAgentID != "coder-01" {
		t.Errorf("parked task mutated: %+v", task)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.EventEscalationNoCapacity {
		t.Fatalf("events = %+v, want one no-capacity alert", pub.events)
	}
}

func TestSweepIsOneShot(t *testing.T) {
	s, db := setupSweeper(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedWaitingTask(t, db, "t1", "coder-01", 30, base)
	seedAgent(t, db, "coder-02", models.AgentStatusIdle, "")

	s.now = func() time.Time { return base.Add(31 * time.Minute) }
	if _, err := s.SweepOnce(); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// Park the task again on the new agent; the escalated flag keeps the
	// sweeper away from it forever after.
	if err := db.MarkTaskStarted("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.MarkTaskNeedsHuman("t1", "still stuck", base.Add(32*time.Minute)); err != nil {
		t.Fatalf("park: %v", err)
	}

	s.now = func() time.Time { return base.Add(5 * time.Hour) }
	count, err := s.SweepOnce()
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if count != 0 {
		t.Errorf("handoffs = %d, want 0 for already-escalated task", count)
	}
	task, _ := db.GetTask("t1")
	if task.AssignedAgentID != "coder-02" {
		t.Errorf("one-shot violated: agent = %s", task.AssignedAgentID)
	}
}

func TestSweepHandlesMultipleTasks(t *testing.T) {
	s, db := setupSweeper(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedWaitingTask(t, db, "t1", "coder-01", 15, base)
	seedWaitingTask(t, db, "t2", "coder-02", 15, base)
	seedAgent(t, db, "coder-03", models.AgentStatusIdle, "")

	// The first handoff frees coder-01, which can then take the second
	// task in the same pass.
	s.now = func() time.Time { return base.Add(16 * time.Minute) }
	count, err := s.SweepOnce()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 2 {
		t.Errorf("handoffs = %d, want 2", count)
	}

	t1, _ := db.GetTask("t1")
	t2, _ := db.GetTask("t2")
	if t1.AssignedAgentID == t2.AssignedAgentID {
		t.Errorf("both tasks on %s", t1.AssignedAgentID)
	}
}
