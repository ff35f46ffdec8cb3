package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/codefleet/foreman/pkg/models"
)

// LockOutcome describes what a lock acquisition attempt did.
type LockOutcome string

const (
	// LockCreated means a fresh lease was created.
	LockCreated LockOutcome = "created"
	// LockRenewed means the holder's existing lease had its expiry extended.
	LockRenewed LockOutcome = "renewed"
	// LockSeized means an expired lease was taken over from another holder.
	LockSeized LockOutcome = "seized"
	// LockDenied means a live lease is held by another agent. Denial is a
	// normal branch for the caller, not an error.
	LockDenied LockOutcome = "denied"
)

const lockColumns = "path, agent_id, task_id, acquired_at, expires_at"

func scanLock(row rowScanner) (*models.FileLock, error) {
	var l models.FileLock
	var acquiredAt string
	var expiresAt sql.NullString

	if err := row.Scan(&l.Path, &l.AgentID, &l.TaskID, &acquiredAt, &expiresAt); err != nil {
		return nil, err
	}

	l.AcquiredAt, _ = parseTime(acquiredAt)
	l.ExpiresAt = parseNullableTime(expiresAt)
	return &l, nil
}

// TryAcquireLock attempts to take the lease on path for the given agent
// and task, inside one transaction:
//   - no existing lease: create one
//   - lease held by the same agent: extend the expiry (renewal)
//   - lease expired: overwrite the holder (seizure)
//   - live lease held by another agent: deny, no mutation
//
// The returned lock is the resulting lease on success, or the blocking
// lease on denial.
func (db *DB) TryAcquireLock(path, agentID, taskID string, expiresAt *time.Time, now time.Time) (LockOutcome, *models.FileLock, error) {
	var outcome LockOutcome
	var result *models.FileLock

	err := db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRow("SELECT "+lockColumns+" FROM file_locks WHERE path = ?", path)
		existing, err := scanLock(row)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read lock: %w", err)
		}

		switch {
		case err == sql.ErrNoRows:
			_, err := tx.Exec(`
				INSERT INTO file_locks (path, agent_id, task_id, acquired_at, expires_at)
				VALUES (?, ?, ?, ?, ?)
			`, path, agentID, taskID, formatTime(now), formatNullableTime(expiresAt))
			if err != nil {
				return fmt.Errorf("insert lock: %w", err)
			}
			outcome = LockCreated

		case existing.HeldBy(agentID):
			_, err := tx.Exec(`
				UPDATE file_locks SET task_id = ?, expires_at = ? WHERE path = ?
			`, taskID, formatNullableTime(expiresAt), path)
			if err != nil {
				return fmt.Errorf("renew lock: %w", err)
			}
			outcome = LockRenewed

		case existing.Expired(now):
			_, err := tx.Exec(`
				UPDATE file_locks SET agent_id = ?, task_id = ?, acquired_at = ?, expires_at = ?
				WHERE path = ?
			`, agentID, taskID, formatTime(now), formatNullableTime(expiresAt), path)
			if err != nil {
				return fmt.Errorf("seize lock: %w", err)
			}
			outcome = LockSeized

		default:
			outcome = LockDenied
			result = existing
			return nil
		}

		result = &models.FileLock{
			Path:       path,
			AgentID:    agentID,
			TaskID:     taskID,
			AcquiredAt: now,
			ExpiresAt:  expiresAt,
		}
		if outcome == LockRenewed {
			result.AcquiredAt = existing.AcquiredAt
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return outcome, result, nil
}

// ReleaseLock deletes the lease on path if the named agent holds it.
// Returns false without mutating anything when the agent is not the holder.
func (db *DB) ReleaseLock(path, agentID string) (bool, error) {
	result, err := db.Exec("DELETE FROM file_locks WHERE path = ? AND agent_id = ?", path, agentID)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	return affected > 0, nil
}

// GetLock retrieves the lease on path, or ErrNotFound.
func (db *DB) GetLock(path string) (*models.FileLock, error) {
	row := db.QueryRow("SELECT "+lockColumns+" FROM file_locks WHERE path = ?", path)
	l, err := scanLock(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lock: %w", err)
	}
	return l, nil
}

// ListLocks lists all leases ordered by path.
func (db *DB) ListLocks() ([]models.FileLock, error) {
	rows, err := db.Query("SELECT " + lockColumns + " FROM file_locks ORDER BY path ASC")
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	defer rows.Close()

	var locks []models.FileLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, *l)
	}
	return locks, rows.Err()
}

// ListLocksForTask lists the leases held on behalf of a task.
func (db *DB) ListLocksForTask(taskID string) ([]models.FileLock, error) {
	rows, err := db.Query("SELECT "+lockColumns+" FROM file_locks WHERE task_id = ? ORDER BY path ASC", taskID)
	if err != nil {
		return nil, fmt.Errorf("list locks for task: %w", err)
	}
	defer rows.Close()

	var locks []models.FileLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		locks = append(locks, *l)
	}
	return locks, rows.Err()
}

// DeleteLocksForTask removes all leases held on behalf of a task.
func (db *DB) DeleteLocksForTask(taskID string) (int64, error) {
	result, err := db.Exec("DELETE FROM file_locks WHERE task_id = ?", taskID)
	if err != nil {
		return 0, fmt.Errorf("delete locks for task: %w", err)
	}
	return result.RowsAffected()
}

// DeleteLocksForAgent removes all leases held by an agent.
func (db *DB) DeleteLocksForAgent(agentID string) (int64, error) {
	result, err := db.Exec("DELETE FROM file_locks WHERE agent_id = ?", agentID)
	if err != nil {
		return 0, fmt.Errorf("delete locks for agent: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExpiredLocks removes all leases whose expiry has passed.
func (db *DB) DeleteExpiredLocks(now time.Time) (int64, error) {
	result, err := db.Exec("DELETE FROM file_locks WHERE expires_at IS NOT NULL AND expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired locks: %w", err)
	}
	return result.RowsAffected()
}
