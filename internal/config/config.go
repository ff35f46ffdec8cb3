// Package config handles configuration loading for foreman.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/codefleet/foreman/pkg/models"
)

// Config holds all configuration for the orchestration engine.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Assessor   AssessorConfig   `mapstructure:"assessor"`
	Locks      LocksConfig      `mapstructure:"locks"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Fleet      FleetConfig      `mapstructure:"fleet"`
	Defaults   DefaultsConfig   `mapstructure:"defaults"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. Empty uses the XDG data path.
	Path string `mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings for the secondary assessor.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// AssessorConfig holds complexity assessment settings.
type AssessorConfig struct {
	// SecondaryEnabled turns the secondary model opinion on.
	SecondaryEnabled bool `mapstructure:"secondary_enabled"`
	// SecondaryTimeout bounds the secondary assessment call.
	SecondaryTimeout time.Duration `mapstructure:"secondary_timeout"`
}

// LocksConfig holds file lock settings.
type LocksConfig struct {
	// TTL is the default lease duration for a file lock.
	TTL time.Duration `mapstructure:"ttl"`
	// SweepInterval is how often expired leases are purged.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// EscalationConfig holds human-escalation sweeper settings.
type EscalationConfig struct {
	// SweepInterval is how often the escalation sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// HumanTimeoutMinutes is the default human-wait timeout for new tasks.
	HumanTimeoutMinutes int `mapstructure:"human_timeout_minutes"`
}

// FleetConfig holds agent fleet settings.
type FleetConfig struct {
	// ManifestPath is the YAML agent roster loaded at startup. Empty
	// skips registration; agents may also register through the store.
	ManifestPath string `mapstructure:"manifest_path"`
}

// DefaultsConfig holds default values applied to new tasks.
type DefaultsConfig struct {
	// Priority is assigned to tasks created without one.
	Priority int `mapstructure:"priority"`
	// MaxIterations caps execution attempts per task.
	MaxIterations int `mapstructure:"max_iterations"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, FOREMAN_*)
// 2. Project config (.foreman.yaml in current directory or parent)
// 3. User config (~/.config/foreman/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FOREMAN")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("database.path", "FOREMAN_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("database.path", cfg.Database.Path)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("assessor.secondary_enabled", cfg.Assessor.SecondaryEnabled)
	v.Set("assessor.secondary_timeout", cfg.Assessor.SecondaryTimeout.String())
	v.Set("locks.ttl", cfg.Locks.TTL.String())
	v.Set("locks.sweep_interval", cfg.Locks.SweepInterval.String())
	v.Set("escalation.sweep_interval", cfg.Escalation.SweepInterval.String())
	v.Set("escalation.human_timeout_minutes", cfg.Escalation.HumanTimeoutMinutes)
	v.Set("fleet.manifest_path", cfg.Fleet.ManifestPath)
	v.Set("defaults.priority", cfg.Defaults.Priority)
	v.Set("defaults.max_iterations", cfg.Defaults.MaxIterations)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("assessor.secondary_enabled", false)
	v.SetDefault("assessor.secondary_timeout", "15s")

	v.SetDefault("locks.ttl", "30m")
	v.SetDefault("locks.sweep_interval", "60s")

	v.SetDefault("escalation.sweep_interval", "60s")
	v.SetDefault("escalation.human_timeout_minutes", models.DefaultHumanTimeoutMinutes)

	v.SetDefault("fleet.manifest_path", "")

	v.SetDefault("defaults.priority", 5)
	v.SetDefault("defaults.max_iterations", models.DefaultMaxIterations)
}

// getUserConfigDir returns the XDG config directory for foreman.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "foreman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "foreman")
	}
	return filepath.Join(home, ".config", "foreman")
}

// findProjectConfig searches for .foreman.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".foreman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Assessor: AssessorConfig{
			SecondaryEnabled: false,
			SecondaryTimeout: 15 * time.Second,
		},
		Locks: LocksConfig{
			TTL:           30 * time.Minute,
			SweepInterval: 60 * time.Second,
		},
		Escalation: EscalationConfig{
			SweepInterval:       60 * time.Second,
			HumanTimeoutMinutes: models.DefaultHumanTimeoutMinutes,
		},
		Defaults: DefaultsConfig{
			Priority:      5,
			MaxIterations: models.DefaultMaxIterations,
		},
	}
}
