package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List pending tasks in assignment order",
	RunE:  runQueue,
}

func runQueue(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	tasks, err := e.PendingQueue()
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("Backlog is empty.")
		return nil
	}

	for i, t := range tasks {
		line := fmt.Sprintf("%2d. [p%d] %s  %s (%s)", i+1, t.Priority, t.ID, t.Title, t.Kind)
		if t.RequiredCapability != "" {
			line += " requires=" + string(t.RequiredCapability)
		}
		if t.CurrentIteration > 0 {
			line += fmt.Sprintf(" attempt=%d/%d", t.CurrentIteration, t.MaxIterations)
		}
		fmt.Println(line)
	}
	return nil
}
