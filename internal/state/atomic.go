package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/codefleet/foreman/pkg/models"
)

// This file holds the guarded multi-row operations the engine relies on.
// Each one runs in a single transaction and fails with ErrConflict when a
// guard does not match, so two engine instances racing on the same rows
// cannot both succeed.

// AssignTaskToAgent binds a pending task to an idle agent. The task moves
// to assigned and the agent to busy in the same transaction; if either row
// is not in the expected state the whole operation fails with ErrConflict
// and nothing is mutated.
func (db *DB) AssignTaskToAgent(taskID, agentID string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE tasks SET status = 'assigned', assigned_agent_id = ?
			WHERE id = ? AND status = 'pending' AND assigned_agent_id IS NULL
		`, agentID, taskID)
		if err != nil {
			return fmt.Errorf("assign task: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("task %s is not pending: %w", taskID, ErrConflict)
		}

		result, err = tx.Exec(`
			UPDATE agents SET status = 'busy', current_task_id = ?
			WHERE id = ? AND status = 'idle' AND current_task_id IS NULL
		`, taskID, agentID)
		if err != nil {
			return fmt.Errorf("assign agent: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("agent %s is not idle: %w", agentID, ErrConflict)
		}

		return nil
	})
}

// MarkTaskStarted moves an assigned task to in_progress.
func (db *DB) MarkTaskStarted(taskID string) error {
	result, err := db.Exec(`
		UPDATE tasks SET status = 'in_progress' WHERE id = ? AND status = 'assigned'
	`, taskID)
	if err != nil {
		return fmt.Errorf("mark task started: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %s is not assigned: %w", taskID, ErrConflict)
	}
	return nil
}

// MarkTaskNeedsHuman parks an in_progress task for human input. The
// assigned agent stays bound to the task while it waits.
func (db *DB) MarkTaskNeedsHuman(taskID, reason string, now time.Time) error {
	result, err := db.Exec(`
		UPDATE tasks SET status = 'needs_human', error = ?, human_wait_started_at = ?
		WHERE id = ? AND status = 'in_progress'
	`, reason, formatTime(now), taskID)
	if err != nil {
		return fmt.Errorf("mark task needs human: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %s is not in progress: %w", taskID, ErrConflict)
	}
	return nil
}

// TaskRelease describes the terminal-side updates applied when an agent
// is released from a task.
type TaskRelease struct {
	// Status is the task status to write (completed, failed, or aborted).
	Status models.TaskStatus
	// From lists the statuses the task may be released from. Empty
	// permits any active status.
	From []models.TaskStatus
	// Output is the execution runtime's result text, if any.
	Output string
	// Error is the failure or abort reason, if any.
	Error string
	// Escalated marks the task for human attention.
	Escalated bool
	// IterationDelta is added to the task's iteration counter.
	IterationDelta int
	// Credits is added to the agent's cumulative credit usage.
	Credits float64
	// CompletedAt records when the task finished.
	CompletedAt time.Time
}

// ReleaseTask finishes a bound task: the task leaves its active status,
// its agent returns to idle with updated stats, and every file lock held
// on the task's behalf is deleted, all in one transaction.
func (db *DB) ReleaseTask(taskID string, rel TaskRelease) error {
	return db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRow("SELECT assigned_agent_id, status FROM tasks WHERE id = ?", taskID)
		var agentID sql.NullString
		var status string
		if err := row.Scan(&agentID, &status); err == sql.ErrNoRows {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("read task: %w", err)
		}
		cur := models.TaskStatus(status)
		allowed := cur.Active()
		if len(rel.From) > 0 {
			allowed = false
			for _, s := range rel.From {
				if cur == s {
					allowed = true
				}
			}
		}
		if !allowed {
			return fmt.Errorf("task %s is %s: %w", taskID, status, ErrConflict)
		}

		_, err := tx.Exec(`
			UPDATE tasks SET status = ?, assigned_agent_id = NULL, output = ?, error = ?,
				escalated = ?, current_iteration = current_iteration + ?,
				human_wait_started_at = NULL, completed_at = ?
			WHERE id = ?
		`, string(rel.Status), nullIfEmpty(rel.Output), nullIfEmpty(rel.Error),
			boolToInt(rel.Escalated), rel.IterationDelta, formatTime(rel.CompletedAt), taskID)
		if err != nil {
			return fmt.Errorf("release task: %w", err)
		}

		if agentID.Valid {
			// Completions and failures count against the agent's record;
			// an abort is nobody's fault.
			bump := ""
			switch rel.Status {
			case models.TaskStatusCompleted:
				bump = "completed_count = completed_count + 1,"
			case models.TaskStatusFailed:
				bump = "failed_count = failed_count + 1,"
			}
			_, err = tx.Exec(`
				UPDATE agents SET status = 'idle', current_task_id = NULL,
					`+bump+` credits_used = credits_used + ?
				WHERE id = ?
			`, rel.Credits, agentID.String)
			if err != nil {
				return fmt.Errorf("release agent: %w", err)
			}
		}

		if _, err := tx.Exec("DELETE FROM file_locks WHERE task_id = ?", taskID); err != nil {
			return fmt.Errorf("release task locks: %w", err)
		}

		return nil
	})
}

// RequeueTask loops a failed task back to pending for another routing
// pass. The iteration counter is preserved so the router's fix-cycle sees
// the failure history.
func (db *DB) RequeueTask(taskID string) error {
	result, err := db.Exec(`
		UPDATE tasks SET status = 'pending', completed_at = NULL
		WHERE id = ? AND status = 'failed' AND current_iteration < max_iterations
	`, taskID)
	if err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %s is not retryable: %w", taskID, ErrConflict)
	}
	return nil
}

// EscalateTaskUnassigned marks a pending task as terminally failed with
// the escalation flag set, for routing decisions that say a human must
// take over. No agent is involved.
func (db *DB) EscalateTaskUnassigned(taskID, reason string, now time.Time) error {
	result, err := db.Exec(`
		UPDATE tasks SET status = 'failed', escalated = 1, error = ?, completed_at = ?
		WHERE id = ? AND status = 'pending'
	`, reason, formatTime(now), taskID)
	if err != nil {
		return fmt.Errorf("escalate task: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %s is not pending: %w", taskID, ErrConflict)
	}
	return nil
}

// MarkTaskAbortedUnassigned aborts a task that is not bound to any
// agent: pending, or failed with retries still available. An escalated
// failure keeps its record.
func (db *DB) MarkTaskAbortedUnassigned(taskID, reason string, now time.Time) error {
	result, err := db.Exec(`
		UPDATE tasks SET status = 'aborted', error = ?, completed_at = ?
		WHERE id = ? AND (status = 'pending' OR (status = 'failed' AND escalated = 0))
	`, reason, formatTime(now), taskID)
	if err != nil {
		return fmt.Errorf("abort task: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("task %s is not abortable: %w", taskID, ErrConflict)
	}
	return nil
}

// HandoffTask transfers a human-blocked task from one agent to another:
// the old agent returns to idle, the new agent becomes busy, and the task
// re-enters assigned with its wait timestamp cleared and the escalated
// flag set, all in one transaction.
func (db *DB) HandoffTask(taskID, fromAgentID, toAgentID string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE tasks SET status = 'assigned', assigned_agent_id = ?,
				human_wait_started_at = NULL, escalated = 1
			WHERE id = ? AND status = 'needs_human' AND assigned_agent_id = ?
		`, toAgentID, taskID, fromAgentID)
		if err != nil {
			return fmt.Errorf("handoff task: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("task %s is not waiting on %s: %w", taskID, fromAgentID, ErrConflict)
		}

		result, err = tx.Exec(`
			UPDATE agents SET status = 'idle', current_task_id = NULL
			WHERE id = ? AND current_task_id = ?
		`, fromAgentID, taskID)
		if err != nil {
			return fmt.Errorf("handoff release agent: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("agent %s does not hold task %s: %w", fromAgentID, taskID, ErrConflict)
		}

		result, err = tx.Exec(`
			UPDATE agents SET status = 'busy', current_task_id = ?
			WHERE id = ? AND status = 'idle' AND current_task_id IS NULL
		`, taskID, toAgentID)
		if err != nil {
			return fmt.Errorf("handoff bind agent: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("agent %s is not idle: %w", toAgentID, ErrConflict)
		}

		return nil
	})
}
