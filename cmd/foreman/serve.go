package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its background sweepers",
	Long: `Start the orchestration engine and keep it running.

While serving, the lock sweeper purges expired file leases and the
escalation sweeper hands off tasks that have exceeded their human-wait
timeout. Engine events are streamed to stdout. Stop with Ctrl-C.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e.Start(ctx)
	fmt.Println("foreman serving; press Ctrl-C to stop")

	events := e.Events()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nshutting down")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			line := fmt.Sprintf("[%s] %s", ev.Timestamp.Format("15:04:05"), ev.Type)
			if ev.TaskID != "" {
				line += " task=" + ev.TaskID
			}
			if ev.AgentID != "" {
				line += " agent=" + ev.AgentID
			}
			if ev.Path != "" {
				line += " path=" + ev.Path
			}
			if ev.Message != "" {
				line += " " + ev.Message
			}
			fmt.Println(line)
		}
	}
}
