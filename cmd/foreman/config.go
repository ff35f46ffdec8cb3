package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/codefleet/foreman/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify foreman configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/foreman/config.yaml
Project-specific overrides can be placed in .foreman.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("database.path: %s\n", cfg.Database.Path)
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("assessor.secondary_enabled: %t\n", cfg.Assessor.SecondaryEnabled)
	fmt.Printf("assessor.secondary_timeout: %s\n", cfg.Assessor.SecondaryTimeout)
	fmt.Printf("locks.ttl: %s\n", cfg.Locks.TTL)
	fmt.Printf("locks.sweep_interval: %s\n", cfg.Locks.SweepInterval)
	fmt.Printf("escalation.sweep_interval: %s\n", cfg.Escalation.SweepInterval)
	fmt.Printf("escalation.human_timeout_minutes: %d\n", cfg.Escalation.HumanTimeoutMinutes)
	fmt.Printf("fleet.manifest_path: %s\n", cfg.Fleet.ManifestPath)
	fmt.Printf("defaults.priority: %d\n", cfg.Defaults.Priority)
	fmt.Printf("defaults.max_iterations: %d\n", cfg.Defaults.MaxIterations)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue returns the value for a dotted config key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "database.path":
		return cfg.Database.Path, nil
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "assessor.secondary_enabled":
		return strconv.FormatBool(cfg.Assessor.SecondaryEnabled), nil
	case "assessor.secondary_timeout":
		return cfg.Assessor.SecondaryTimeout.String(), nil
	case "locks.ttl":
		return cfg.Locks.TTL.String(), nil
	case "locks.sweep_interval":
		return cfg.Locks.SweepInterval.String(), nil
	case "escalation.sweep_interval":
		return cfg.Escalation.SweepInterval.String(), nil
	case "escalation.human_timeout_minutes":
		return strconv.Itoa(cfg.Escalation.HumanTimeoutMinutes), nil
	case "fleet.manifest_path":
		return cfg.Fleet.ManifestPath, nil
	case "defaults.priority":
		return strconv.Itoa(cfg.Defaults.Priority), nil
	case "defaults.max_iterations":
		return strconv.Itoa(cfg.Defaults.MaxIterations), nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// setConfigValue updates a config field from its string representation.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "database.path":
		cfg.Database.Path = value
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "assessor.secondary_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		cfg.Assessor.SecondaryEnabled = b
	case "assessor.secondary_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Assessor.SecondaryTimeout = d
	case "locks.ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Locks.TTL = d
	case "locks.sweep_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Locks.SweepInterval = d
	case "escalation.sweep_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", value)
		}
		cfg.Escalation.SweepInterval = d
	case "escalation.human_timeout_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid minute count: %s", value)
		}
		cfg.Escalation.HumanTimeoutMinutes = n
	case "fleet.manifest_path":
		cfg.Fleet.ManifestPath = value
	case "defaults.priority":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 10 {
			return fmt.Errorf("priority must be 1-10: %s", value)
		}
		cfg.Defaults.Priority = n
	case "defaults.max_iterations":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid iteration count: %s", value)
		}
		cfg.Defaults.MaxIterations = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
