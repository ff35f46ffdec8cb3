package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codefleet/foreman/internal/config"
	"github.com/codefleet/foreman/internal/engine"
)

var (
	flagDBPath   string
	flagLogPath  string
	flagManifest string
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Task orchestration engine for a fleet of work agents",
	Long: `Foreman coordinates a fleet of autonomous work agents over a shared
task backlog. It assesses task complexity, routes each task to the
cheapest capable agent and execution tier, enforces exclusive file
leases between concurrent agents, and hands off tasks that have waited
too long on human input.

Agents register through a YAML fleet manifest and report progress back
through the task lifecycle commands. State lives in a single SQLite
database, so every command operates on the same backlog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to the state database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogPath, "log", "", "Path to a debug log file")
	rootCmd.PersistentFlags().StringVar(&flagManifest, "fleet", "", "Path to the agent fleet manifest (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(autoAssignCmd)
	rootCmd.AddCommand(smartAssignCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(abortCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(humanCmd)
	rootCmd.AddCommand(locksCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// openEngine loads configuration and wires the engine. The caller owns
// the returned engine and must Stop it.
func openEngine() (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagManifest != "" {
		cfg.Fleet.ManifestPath = flagManifest
	}
	e, err := engine.New(cfg, engine.Options{
		DBPath:  flagDBPath,
		LogPath: flagLogPath,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
