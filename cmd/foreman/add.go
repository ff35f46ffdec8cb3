package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codefleet/foreman/internal/engine"
	"github.com/codefleet/foreman/pkg/models"
)

var (
	addDescription   string
	addKind          string
	addCapability    string
	addPriority      int
	addMaxIterations int
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to the backlog",
	Long: `Create a new pending task.

The task enters the backlog and waits for assignment. Use 'foreman
smart-assign' to route it through the complexity assessor, or 'foreman
assign' to bind it to a specific agent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Detailed task instructions")
	addCmd.Flags().StringVarP(&addKind, "kind", "k", "", "Task kind: code, test, review, debug, refactor (default code)")
	addCmd.Flags().StringVarP(&addCapability, "capability", "c", "", "Pin the task to agents with this capability: coder, qa, cto")
	addCmd.Flags().IntVarP(&addPriority, "priority", "p", 0, "Priority 1-10 (default from config)")
	addCmd.Flags().IntVar(&addMaxIterations, "max-iterations", 0, "Retry cap before human escalation (default from config)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	task, err := e.CreateTask(engine.NewTaskParams{
		Title:              strings.Join(args, " "),
		Description:        addDescription,
		Kind:               models.TaskKind(addKind),
		RequiredCapability: models.Capability(addCapability),
		Priority:           addPriority,
		MaxIterations:      addMaxIterations,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created task %s\n", task.ID)
	fmt.Printf("  title:    %s\n", task.Title)
	fmt.Printf("  kind:     %s\n", task.Kind)
	fmt.Printf("  priority: %d\n", task.Priority)
	if task.RequiredCapability != "" {
		fmt.Printf("  requires: %s\n", task.RequiredCapability)
	}
	return nil
}
