package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codefleet/foreman/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backlog and fleet state",
	Long: `Display the current state of the orchestration engine.

Shows:
  - Task counts per lifecycle status
  - Every registered agent, its capability, and what it is working on
  - Currently held file leases`,
	RunE: runStatus,
}

// statusOrder fixes the display order of task statuses.
var statusOrder = []models.TaskStatus{
	models.TaskStatusPending,
	models.TaskStatusAssigned,
	models.TaskStatusInProgress,
	models.TaskStatusNeedsHuman,
	models.TaskStatusCompleted,
	models.TaskStatusFailed,
	models.TaskStatusAborted,
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	counts, err := e.Store().CountTasksByStatus()
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}

	fmt.Println("Tasks")
	total := 0
	for _, status := range statusOrder {
		n := counts[status]
		total += n
		if n == 0 {
			continue
		}
		fmt.Printf("  %-12s %d\n", status, n)
	}
	if total == 0 {
		fmt.Println("  (backlog empty)")
	}

	agents, err := e.Store().ListAgents()
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	fmt.Println("\nAgents")
	if len(agents) == 0 {
		fmt.Println("  (none registered; provide a fleet manifest)")
	}
	for _, a := range agents {
		badge := agentBadge(a.Status)
		line := fmt.Sprintf("  %s %-10s %-6s done=%d failed=%d credits=%.2f",
			badge, a.ID, a.Capability, a.CompletedCount, a.FailedCount, a.CreditsUsed)
		if a.CurrentTaskID != "" {
			line += " task=" + a.CurrentTaskID
		}
		fmt.Println(line)
	}

	held, err := e.Locks.LockedFiles()
	if err != nil {
		return fmt.Errorf("list locks: %w", err)
	}
	if len(held) > 0 {
		fmt.Println("\nFile leases")
		for _, l := range held {
			expiry := "indefinite"
			if l.ExpiresAt != nil {
				expiry = l.ExpiresAt.Format("15:04:05")
			}
			fmt.Printf("  %s held by %s (task %s, expires %s)\n", l.Path, l.AgentID, l.TaskID, expiry)
		}
	}
	return nil
}

// agentBadge returns a colored status marker for an agent.
func agentBadge(status models.AgentStatus) string {
	switch status {
	case models.AgentStatusIdle:
		return color.GreenString("●")
	case models.AgentStatusBusy:
		return color.YellowString("●")
	default:
		return color.RedString("●")
	}
}
