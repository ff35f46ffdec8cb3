package state

import (
	"database/sql"
	"fmt"

	"github.com/codefleet/foreman/pkg/models"
)

const agentColumns = `id, capability, status, current_task_id,
	completed_count, failed_count, credits_used, created_at`

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var currentTaskID sql.NullString
	var createdAt string

	err := row.Scan(&a.ID, &a.Capability, &a.Status, &currentTaskID,
		&a.CompletedCount, &a.FailedCount, &a.CreditsUsed, &createdAt)
	if err != nil {
		return nil, err
	}

	a.CurrentTaskID = currentTaskID.String
	a.CreatedAt, _ = parseTime(createdAt)
	return &a, nil
}

// UpsertAgent inserts an agent or refreshes its capability if it already
// exists. Status, current task, and stats are preserved on conflict so a
// restart does not clobber live state.
func (db *DB) UpsertAgent(a *models.Agent) error {
	_, err := db.Exec(`
		INSERT INTO agents (id, capability, status, current_task_id,
			completed_count, failed_count, credits_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET capability = excluded.capability
	`, a.ID, string(a.Capability), string(a.Status), nullIfEmpty(a.CurrentTaskID),
		a.CompletedCount, a.FailedCount, a.CreditsUsed, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID. Returns ErrNotFound if it does not exist.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	row := db.QueryRow("SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// UpdateAgentStatus sets an agent's status and current task pointer.
func (db *DB) UpdateAgentStatus(id string, status models.AgentStatus, currentTaskID string) error {
	result, err := db.Exec(`
		UPDATE agents SET status = ?, current_task_id = ? WHERE id = ?
	`, string(status), nullIfEmpty(currentTaskID), id)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAgents lists all registered agents ordered by ID.
func (db *DB) ListAgents() ([]models.Agent, error) {
	rows, err := db.Query("SELECT " + agentColumns + " FROM agents ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	return collectAgents(rows)
}

// ListIdleAgents lists idle agents ordered by ID. The stable ordering
// keeps routing deterministic for a fixed agent set.
func (db *DB) ListIdleAgents() ([]models.Agent, error) {
	rows, err := db.Query("SELECT " + agentColumns + " FROM agents WHERE status = 'idle' ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list idle agents: %w", err)
	}
	defer rows.Close()

	return collectAgents(rows)
}

// FindAgentByCapability returns the first agent of the given capability
// regardless of status, or ErrNotFound.
func (db *DB) FindAgentByCapability(capability models.Capability) (*models.Agent, error) {
	row := db.QueryRow(`
		SELECT `+agentColumns+` FROM agents WHERE capability = ? ORDER BY id ASC LIMIT 1
	`, string(capability))
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agent by capability: %w", err)
	}
	return a, nil
}

func collectAgents(rows *sql.Rows) ([]models.Agent, error) {
	var agents []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}
