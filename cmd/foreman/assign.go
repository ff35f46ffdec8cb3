package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefleet/foreman/pkg/models"
)

var assignCmd = &cobra.Command{
	Use:   "assign <task-id> <agent-id>",
	Short: "Bind a specific task to a specific agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		if err := e.Assign(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Assigned task %s to %s\n", args[0], args[1])
		return nil
	},
}

var autoAssignCmd = &cobra.Command{
	Use:   "auto-assign <agent-id>",
	Short: "Give an idle agent the next pending task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		task, err := e.AutoAssign(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Assigned task %s (%s) to %s\n", task.ID, task.Title, args[0])
		return nil
	},
}

var smartAssignCmd = &cobra.Command{
	Use:   "smart-assign",
	Short: "Route the next pending task through the complexity assessor",
	Long: `Take the highest-priority pending task, assess its complexity, and
commit the router's choice of agent and tier. If the router decides the
task needs a human instead, the task is parked for review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		decision, err := e.SmartAssign(cmd.Context())
		if err != nil {
			return err
		}
		printDecision(decision)
		return nil
	},
}

var routeCmd = &cobra.Command{
	Use:   "route <task-id>",
	Short: "Show the routing decision for a task without committing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		decision, err := e.RouteRecommendation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printDecision(decision)
		return nil
	},
}

func printDecision(d *models.RoutingDecision) {
	fmt.Printf("Task %s\n", d.TaskID)
	if d.Escalate {
		fmt.Println("  decision:   escalate to human")
	} else {
		fmt.Printf("  agent:      %s\n", d.AgentID)
		fmt.Printf("  tier:       %s (est. %.2f credits)\n", d.Tier, d.EstimatedCost)
	}
	fmt.Printf("  complexity: %.2f (rule %.2f", d.FinalScore, d.RuleScore)
	if d.SecondaryScore != nil {
		fmt.Printf(", secondary %.2f", *d.SecondaryScore)
	}
	fmt.Printf(", %s)\n", d.AssessmentMethod)
	fmt.Printf("  confidence: %.2f\n", d.Confidence)
	fmt.Printf("  reason:     %s\n", d.Reason)
	if d.FallbackAgentID != "" {
		fmt.Printf("  fallback:   %s\n", d.FallbackAgentID)
	}
}
