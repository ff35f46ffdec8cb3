package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	lockTaskID     string
	lockTTL        time.Duration
	lockIndefinite bool
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and manage file leases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLocksList(cmd, args)
	},
}

var locksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently held file leases",
	RunE:  runLocksList,
}

var locksAcquireCmd = &cobra.Command{
	Use:   "acquire <path> <agent-id>",
	Short: "Acquire an exclusive lease on a file path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		ttl := lockTTL
		if lockIndefinite {
			ttl = -1
		}
		res, err := e.Locks.Acquire(args[0], args[1], lockTaskID, ttl)
		if err != nil {
			return err
		}
		if !res.Granted {
			fmt.Printf("Denied: %s is held by %s (task %s)\n", args[0], res.Lock.AgentID, res.Lock.TaskID)
			return nil
		}
		expiry := "indefinite"
		if res.Lock.ExpiresAt != nil {
			expiry = res.Lock.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("Lease %s on %s for %s (expires %s)\n", res.Outcome, args[0], args[1], expiry)
		return nil
	},
}

var locksReleaseCmd = &cobra.Command{
	Use:   "release <path> <agent-id>",
	Short: "Release a lease held by an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		released, err := e.Locks.Release(args[0], args[1])
		if err != nil {
			return err
		}
		if !released {
			fmt.Printf("No lease on %s held by %s\n", args[0], args[1])
			return nil
		}
		fmt.Printf("Released %s\n", args[0])
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the lock and escalation sweeps once",
	Long: `Run one pass of each background sweep: purge expired file leases and
hand off tasks that have exceeded their human-wait timeout. 'foreman
serve' runs both continuously; this command is for one-shot use from
cron or scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Stop()

		purged, err := e.Locks.SweepExpired()
		if err != nil {
			return err
		}
		handoffs, err := e.Sweeper.SweepOnce()
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired lease(s), handed off %d task(s)\n", purged, handoffs)
		return nil
	},
}

func runLocksList(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Stop()

	held, err := e.Locks.LockedFiles()
	if err != nil {
		return err
	}
	if len(held) == 0 {
		fmt.Println("No file leases held.")
		return nil
	}
	for _, l := range held {
		expiry := "indefinite"
		if l.ExpiresAt != nil {
			expiry = l.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  agent=%s task=%s expires=%s\n", l.Path, l.AgentID, l.TaskID, expiry)
	}
	return nil
}

func init() {
	locksAcquireCmd.Flags().StringVar(&lockTaskID, "task", "", "Task the lease is held for")
	locksAcquireCmd.Flags().DurationVar(&lockTTL, "ttl", 0, "Lease duration (default 30m)")
	locksAcquireCmd.Flags().BoolVar(&lockIndefinite, "indefinite", false, "Hold the lease until released")

	locksCmd.AddCommand(locksListCmd)
	locksCmd.AddCommand(locksAcquireCmd)
	locksCmd.AddCommand(locksReleaseCmd)
}
