package state

import (
	"sync"
	"testing"
	"time"
)

func TestTryAcquireLockOutcomes(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(30 * time.Minute)

	// Fresh path: created.
	outcome, lock, err := db.TryAcquireLock("src/auth.go", "coder-01", "task-1", &expiry, now)
	if err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}
	if outcome != LockCreated {
		t.Errorf("outcome = %q, want created", outcome)
	}
	if lock.AgentID != "coder-01" {
		t.Errorf("holder = %q, want coder-01", lock.AgentID)
	}

	// Same agent again: renewed, not duplicated.
	laterExpiry := now.Add(time.Hour)
	outcome, lock, err = db.TryAcquireLock("src/auth.go", "coder-01", "task-1", &laterExpiry, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("TryAcquireLock renewal failed: %v", err)
	}
	if outcome != LockRenewed {
		t.Errorf("outcome = %q, want renewed", outcome)
	}
	if lock.ExpiresAt == nil || !lock.ExpiresAt.Equal(laterExpiry) {
		t.Errorf("expiry not extended: %v", lock.ExpiresAt)
	}

	// Different agent on a live lease: denied, no mutation.
	outcome, blocking, err := db.TryAcquireLock("src/auth.go", "qa-01", "task-2", &laterExpiry, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("TryAcquireLock denial failed: %v", err)
	}
	if outcome != LockDenied {
		t.Errorf("outcome = %q, want denied", outcome)
	}
	if blocking.AgentID != "coder-01" {
		t.Errorf("blocking holder = %q, want coder-01", blocking.AgentID)
	}

	held, err := db.GetLock("src/auth.go")
	if err != nil {
		t.Fatalf("GetLock failed: %v", err)
	}
	if held.AgentID != "coder-01" {
		t.Errorf("lock holder after denial = %q, want coder-01", held.AgentID)
	}
}

func TestTryAcquireLockSeizure(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	expiry := now.Add(10 * time.Minute)
	if _, _, err := db.TryAcquireLock("src/db.go", "coder-01", "task-1", &expiry, now); err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}

	// Past the expiry, another agent takes over regardless of holder.
	afterExpiry := now.Add(11 * time.Minute)
	newExpiry := afterExpiry.Add(30 * time.Minute)
	outcome, lock, err := db.TryAcquireLock("src/db.go", "qa-01", "task-2", &newExpiry, afterExpiry)
	if err != nil {
		t.Fatalf("TryAcquireLock seizure failed: %v", err)
	}
	if outcome != LockSeized {
		t.Errorf("outcome = %q, want seized", outcome)
	}
	if lock.AgentID != "qa-01" || lock.TaskID != "task-2" {
		t.Errorf("seized lock holder = %q/%q, want qa-01/task-2", lock.AgentID, lock.TaskID)
	}
}

func TestReleaseLockHolderChecked(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	if _, _, err := db.TryAcquireLock("src/api.go", "coder-01", "task-1", nil, now); err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}

	// A non-holder cannot release someone else's lock.
	released, err := db.ReleaseLock("src/api.go", "qa-01")
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if released {
		t.Error("non-holder release should be a no-op")
	}
	if _, err := db.GetLock("src/api.go"); err != nil {
		t.Errorf("lock should still exist: %v", err)
	}

	released, err = db.ReleaseLock("src/api.go", "coder-01")
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if !released {
		t.Error("holder release should succeed")
	}
}

func TestDeleteExpiredLocks(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	expired := now.Add(-time.Minute)
	live := now.Add(time.Hour)
	if _, _, err := db.TryAcquireLock("a.go", "coder-01", "task-1", &expired, now.Add(-time.Hour)); err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}
	if _, _, err := db.TryAcquireLock("b.go", "coder-01", "task-1", &live, now); err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}
	// Indefinite leases are never swept.
	if _, _, err := db.TryAcquireLock("c.go", "coder-01", "task-1", nil, now); err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}

	count, err := db.DeleteExpiredLocks(now)
	if err != nil {
		t.Fatalf("DeleteExpiredLocks failed: %v", err)
	}
	if count != 1 {
		t.Errorf("deleted %d locks, want 1", count)
	}

	locks, err := db.ListLocks()
	if err != nil {
		t.Fatalf("ListLocks failed: %v", err)
	}
	if len(locks) != 2 {
		t.Errorf("got %d remaining locks, want 2", len(locks))
	}
}

func TestDeleteLocksForAgent(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()

	for _, path := range []string{"a.go", "b.go"} {
		if _, _, err := db.TryAcquireLock(path, "coder-01", "task-1", nil, now); err != nil {
			t.Fatalf("TryAcquireLock failed: %v", err)
		}
	}
	if _, _, err := db.TryAcquireLock("c.go", "qa-01", "task-2", nil, now); err != nil {
		t.Fatalf("TryAcquireLock failed: %v", err)
	}

	count, err := db.DeleteLocksForAgent("coder-01")
	if err != nil {
		t.Fatalf("DeleteLocksForAgent failed: %v", err)
	}
	if count != 2 {
		t.Errorf("deleted %d locks, want 2", count)
	}
}

func TestTryAcquireLockRace(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(30 * time.Minute)

	// Two agents racing for the same path: exactly one lease is created
	// and the other attempt is denied, never two holders.
	type attempt struct {
		agentID string
		outcome LockOutcome
	}
	results := make(chan attempt, 2)
	var wg sync.WaitGroup
	for _, agentID := range []string{"coder-01", "qa-01"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			outcome, _, err := db.TryAcquireLock("src/auth.go", id, "task-"+id, &expiry, now)
			if err != nil {
				t.Errorf("TryAcquireLock(%s) failed: %v", id, err)
				return
			}
			results <- attempt{agentID: id, outcome: outcome}
		}(agentID)
	}
	wg.Wait()
	close(results)

	var created, denied int
	var winner string
	for r := range results {
		switch r.outcome {
		case LockCreated:
			created++
			winner = r.agentID
		case LockDenied:
			denied++
		default:
			t.Errorf("agent %s got outcome %q", r.agentID, r.outcome)
		}
	}
	if created != 1 || denied != 1 {
		t.Fatalf("created=%d denied=%d, want exactly one of each", created, denied)
	}

	held, err := db.GetLock("src/auth.go")
	if err != nil {
		t.Fatalf("GetLock failed: %v", err)
	}
	if held.AgentID != winner {
		t.Errorf("lock holder = %q, want race winner %q", held.AgentID, winner)
	}
}
