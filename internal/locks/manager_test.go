package locks

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/codefleet/foreman/internal/events"
	"github.com/codefleet/foreman/internal/state"
)

func setupManager(t *testing.T) (*Manager, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "locks.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewManager(db, nil), db
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(e events.Event) {
	r.events = append(r.events, e)
}

func TestAcquireDefaultTTL(t *testing.T) {
	m, _ := setupManager(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	res, err := m.Acquire("src/main.go", "coder-01", "task-1", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !res.Granted {
		t.Fatal("expected grant")
	}
	if res.Outcome != state.LockCreated {
		t.Errorf("outcome = %s, want %s", res.Outcome, state.LockCreated)
	}
	if res.Lock.ExpiresAt == nil {
		t.Fatal("expected expiry on default TTL")
	}
	want := base.Add(DefaultTTL)
	if !res.Lock.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", res.Lock.ExpiresAt, want)
	}
}

func TestAcquireIndefinite(t *testing.T) {
	m, _ := setupManager(t)

	res, err := m.Acquire("src/main.go", "coder-01", "task-1", -1)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if res.Lock.ExpiresAt != nil {
		t.Errorf("expected indefinite lease, got expiry %v", res.Lock.ExpiresAt)
	}
}

func TestAcquireEmptyPath(t *testing.T) {
	m, _ := setupManager(t)
	if _, err := m.Acquire("", "coder-01", "task-1", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestAcquireConflictEmitsEvent(t *testing.T) {
	m, _ := setupManager(t)
	pub := &recordingPublisher{}
	m.events = pub

	if _, err := m.Acquire("src/db.go", "coder-01", "task-1", time.Hour); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	res, err := m.Acquire("src/db.go", "qa-01", "task-2", time.Hour)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if res.Granted {
		t.Fatal("expected denial")
	}
	if res.Outcome != state.LockDenied {
		t.Errorf("outcome = %s, want %s", res.Outcome, state.LockDenied)
	}
	if res.Lock.AgentID != "coder-01" {
		t.Errorf("blocking holder = %s, want coder-01", res.Lock.AgentID)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != events.EventLockConflict {
		t.Errorf("event type = %s, want %s", evt.Type, events.EventLockConflict)
	}
	if evt.AgentID != "qa-01" || evt.Path != "src/db.go" {
		t.Errorf("event attribution = %s/%s", evt.AgentID, evt.Path)
	}
	if evt.Metadata["holder_agent_id"] != "coder-01" {
		t.Errorf("holder metadata = %v", evt.Metadata["holder_agent_id"])
	}

	// Denial must not change the standing lease.
	held, err := m.store.GetLock("src/db.go")
	if err != nil {
		t.Fatalf("get lock: %v", err)
	}
	if held.AgentID != "coder-01" || held.TaskID != "task-1" {
		t.Errorf("lease mutated on denial: %+v", held)
	}
}

func TestReleaseHolderOnly(t *testing.T) {
	m, _ := setupManager(t)

	if _, err := m.Acquire("src/api.go", "coder-01", "task-1", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	released, err := m.Release("src/api.go", "qa-01")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released {
		t.Fatal("non-holder release must be refused")
	}

	released, err = m.Release("src/api.go", "coder-01")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatal("holder release must succeed")
	}
}

func TestIsLocked(t *testing.T) {
	m, _ := setupManager(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if _, err := m.Acquire("src/api.go", "coder-01", "task-1", 10*time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	locked, err := m.IsLocked("src/api.go", "")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if !locked {
		t.Error("expected locked for other callers")
	}

	// The holder's own lease does not block it.
	locked, err = m.IsLocked("src/api.go", "coder-01")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if locked {
		t.Error("holder must not be blocked by its own lease")
	}

	// Unknown paths are unlocked.
	locked, err = m.IsLocked("src/other.go", "")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if locked {
		t.Error("unknown path reported locked")
	}

	// Expired leases count as unlocked.
	m.now = func() time.Time { return base.Add(11 * time.Minute) }
	locked, err = m.IsLocked("src/api.go", "")
	if err != nil {
		t.Fatalf("is locked: %v", err)
	}
	if locked {
		t.Error("expired lease reported locked")
	}
}

func TestReleaseAllForTask(t *testing.T) {
	m, _ := setupManager(t)

	for _, p := range []string{"a.go", "b.go"} {
		if _, err := m.Acquire(p, "coder-01", "task-1", time.Hour); err != nil {
			t.Fatalf("acquire %s: %v", p, err)
		}
	}
	if _, err := m.Acquire("c.go", "coder-01", "task-2", time.Hour); err != nil {
		t.Fatalf("acquire c.go: %v", err)
	}

	count, err := m.ReleaseAllForTask("task-1")
	if err != nil {
		t.Fatalf("release all: %v", err)
	}
	if count != 2 {
		t.Errorf("released %d, want 2", count)
	}

	remaining, err := m.LockedFiles()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Path != "c.go" {
		t.Errorf("remaining = %+v", remaining)
	}
}

func TestSweepExpired(t *testing.T) {
	m, _ := setupManager(t)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if _, err := m.Acquire("short.go", "coder-01", "task-1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := m.Acquire("forever.go", "coder-01", "task-1", -1); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	count, err := m.SweepExpired()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Errorf("swept %d, want 1", count)
	}

	remaining, err := m.LockedFiles()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Path != "forever.go" {
		t.Errorf("remaining = %+v", remaining)
	}
}
