package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codefleet/foreman/pkg/models"
)

// The lifecycle commands are the reporting surface for agent runtimes:
// an agent invokes them to tell the engine what happened to its task.

var (
	completeOutput  string
	completeCredits float64
	failReason      string
	failCredits     float64
	abortReason     string
	humanReason     string
)

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Mark an assigned task as in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		if err := e.Lifecycle.HandleTaskStart(args[0]); err != nil {
			return err
		}
		fmt.Printf("Task %s is in progress\n", args[0])
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Report a task as completed",
	Long: `Mark an in-progress task completed. The assigned agent returns to
idle, its file leases are released, and its completion counter and
credit usage are updated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		metrics := models.ExecutionMetrics{CreditsUsed: completeCredits}
		if err := e.Lifecycle.HandleTaskCompletion(args[0], completeOutput, metrics); err != nil {
			return err
		}
		fmt.Printf("Task %s completed\n", args[0])
		return nil
	},
}

var failCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Report a task as failed",
	Long: `Mark an in-progress task failed. If the task has retries remaining it
returns to the backlog; otherwise it is flagged for human review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		metrics := models.ExecutionMetrics{CreditsUsed: failCredits}
		if err := e.Lifecycle.HandleTaskFailure(args[0], failReason, metrics); err != nil {
			return err
		}
		task, err := e.Store().GetTask(args[0])
		if err != nil {
			return err
		}
		if task.IterationsRemaining() {
			fmt.Printf("Task %s failed; %d attempt(s) remaining\n", args[0], task.MaxIterations-task.CurrentIteration)
		} else {
			fmt.Printf("Task %s failed; retries exhausted, flagged for human review\n", args[0])
		}
		return nil
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort <task-id>",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		if err := e.Lifecycle.AbortTask(args[0], abortReason); err != nil {
			return err
		}
		fmt.Printf("Task %s aborted\n", args[0])
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Return a failed task to the backlog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		if err := e.Lifecycle.RetryTask(args[0]); err != nil {
			return err
		}
		fmt.Printf("Task %s requeued\n", args[0])
		return nil
	},
}

var humanCmd = &cobra.Command{
	Use:   "human <task-id>",
	Short: "Park a task for human input",
	Long: `Mark an in-progress task as waiting on human input. The agent stays
bound to the task; if no human responds within the task's timeout, the
escalation sweeper hands the task to another idle agent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		if err := e.Lifecycle.RequestHumanInput(args[0], humanReason); err != nil {
			return err
		}
		fmt.Printf("Task %s is waiting on human input\n", args[0])
		return nil
	},
}

func init() {
	completeCmd.Flags().StringVarP(&completeOutput, "output", "o", "", "Result text from the run")
	completeCmd.Flags().Float64Var(&completeCredits, "credits", 0, "Credits consumed by the run")
	failCmd.Flags().StringVarP(&failReason, "reason", "r", "", "Failure reason")
	failCmd.Flags().Float64Var(&failCredits, "credits", 0, "Credits consumed by the run")
	abortCmd.Flags().StringVarP(&abortReason, "reason", "r", "", "Abort reason")
	humanCmd.Flags().StringVarP(&humanReason, "reason", "r", "", "What the agent needs from a human")
}
