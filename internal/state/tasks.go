package state

import (
	"database/sql"
	"fmt"

	"github.com/codefleet/foreman/pkg/models"
)

// taskColumns is the column list shared by all task SELECTs, in scan order.
const taskColumns = `id, parent_id, title, description, kind, required_capability,
	priority, status, current_iteration, max_iterations, assigned_agent_id,
	rule_score, secondary_score, final_score, assessment_method,
	human_wait_started_at, human_timeout_minutes, escalated, output, error,
	created_at, completed_at`

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var parentID, description, requiredCapability sql.NullString
	var assignedAgentID, assessmentMethod, output, errMsg sql.NullString
	var secondaryScore sql.NullFloat64
	var humanWaitStartedAt, completedAt sql.NullString
	var createdAt string
	var escalated int

	err := row.Scan(
		&t.ID, &parentID, &t.Title, &description, &t.Kind, &requiredCapability,
		&t.Priority, &t.Status, &t.CurrentIteration, &t.MaxIterations, &assignedAgentID,
		&t.RuleScore, &secondaryScore, &t.FinalScore, &assessmentMethod,
		&humanWaitStartedAt, &t.HumanTimeoutMinutes, &escalated, &output, &errMsg,
		&createdAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ParentID = parentID.String
	t.Description = description.String
	t.RequiredCapability = models.Capability(requiredCapability.String)
	t.AssignedAgentID = assignedAgentID.String
	t.AssessmentMethod = models.AssessmentMethod(assessmentMethod.String)
	if secondaryScore.Valid {
		v := secondaryScore.Float64
		t.SecondaryScore = &v
	}
	t.HumanWaitStartedAt = parseNullableTime(humanWaitStartedAt)
	t.Escalated = escalated != 0
	t.Output = output.String
	t.Error = errMsg.String
	t.CreatedAt, _ = parseTime(createdAt)
	t.CompletedAt = parseNullableTime(completedAt)

	return &t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateTask inserts a new task.
func (db *DB) CreateTask(t *models.Task) error {
	var secondary any
	if t.SecondaryScore != nil {
		secondary = *t.SecondaryScore
	}
	_, err := db.Exec(`
		INSERT INTO tasks (id, parent_id, title, description, kind, required_capability,
			priority, status, current_iteration, max_iterations, assigned_agent_id,
			rule_score, secondary_score, final_score, assessment_method,
			human_wait_started_at, human_timeout_minutes, escalated, output, error,
			created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, nullIfEmpty(t.ParentID), t.Title, nullIfEmpty(t.Description), string(t.Kind),
		nullIfEmpty(string(t.RequiredCapability)), t.Priority, string(t.Status),
		t.CurrentIteration, t.MaxIterations, nullIfEmpty(t.AssignedAgentID),
		t.RuleScore, secondary, t.FinalScore, nullIfEmpty(string(t.AssessmentMethod)),
		formatNullableTime(t.HumanWaitStartedAt), t.HumanTimeoutMinutes, boolToInt(t.Escalated),
		nullIfEmpty(t.Output), nullIfEmpty(t.Error), formatTime(t.CreatedAt),
		formatNullableTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns ErrNotFound if it does not exist.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task. Deletion is refused while the task is bound
// to an agent.
func (db *DB) DeleteTask(id string) error {
	result, err := db.Exec(`
		DELETE FROM tasks WHERE id = ? AND status NOT IN ('assigned', 'in_progress', 'needs_human')
	`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from an active task.
		if _, err := db.GetTask(id); err != nil {
			return err
		}
		return fmt.Errorf("delete task %s: %w", id, ErrConflict)
	}
	return nil
}

// UpdateTaskAssessment persists complexity figures on a task for audit.
func (db *DB) UpdateTaskAssessment(id string, rule float64, secondary *float64, final float64, method models.AssessmentMethod) error {
	var sec any
	if secondary != nil {
		sec = *secondary
	}
	result, err := db.Exec(`
		UPDATE tasks SET rule_score = ?, secondary_score = ?, final_score = ?, assessment_method = ?
		WHERE id = ?
	`, rule, sec, final, string(method), id)
	if err != nil {
		return fmt.Errorf("update task assessment: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// NextPendingTask returns the highest-priority, oldest pending task,
// or ErrNotFound when the backlog is empty.
func (db *DB) NextPendingTask() (*models.Task, error) {
	row := db.QueryRow(`
		SELECT ` + taskColumns + ` FROM tasks
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next pending task: %w", err)
	}
	return t, nil
}

// ListTasksByStatus lists tasks in the given status, newest priority first.
func (db *DB) ListTasksByStatus(status models.TaskStatus) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE status = ?
		ORDER BY priority DESC, created_at ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListHumanWaitTasks lists tasks waiting on a human that have not yet
// been through an escalation handoff.
func (db *DB) ListHumanWaitTasks() ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT ` + taskColumns + ` FROM tasks
		WHERE status = 'needs_human' AND escalated = 0
		ORDER BY human_wait_started_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list human wait tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListSubtasks lists the direct subtasks of a parent task.
func (db *DB) ListSubtasks(parentID string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_id = ?
		ORDER BY created_at ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// CountTasksByStatus returns the number of tasks per status.
func (db *DB) CountTasksByStatus() (map[models.TaskStatus]int, error) {
	rows, err := db.Query("SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("count tasks: %w", err)
		}
		counts[models.TaskStatus(status)] = count
	}
	return counts, rows.Err()
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
