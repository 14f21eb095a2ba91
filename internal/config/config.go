// Package config handles configuration loading and management for Forge.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Forge.
type Config struct {
	Orchestrator  OrchestratorConfig  `mapstructure:"orchestrator"`
	Agent         AgentConfig         `mapstructure:"agent"`
	Decomposition DecompositionConfig `mapstructure:"decomposition"`
	Context       ContextConfig       `mapstructure:"context"`
}

// OrchestratorConfig holds run-level scheduling settings.
type OrchestratorConfig struct {
	// MaxParallel is the advisory cap on phases executing concurrently.
	MaxParallel int `mapstructure:"max_parallel"`
	// FailFast skips transitive dependents when a phase fails.
	FailFast bool `mapstructure:"fail_fast"`
	// PollInterval is the delay between scheduling passes when nothing
	// is ready.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// AgentConfig holds settings for the external coding agent.
type AgentConfig struct {
	// Command is the agent executable invoked per iteration.
	Command string `mapstructure:"command"`
	// Args are extra arguments passed before the prompt.
	Args []string `mapstructure:"args"`
	// Model is the model identifier passed to the agent.
	Model string `mapstructure:"model"`
}

// DecompositionConfig holds decomposition trigger and plan policy.
type DecompositionConfig struct {
	// Enabled turns decomposition on.
	Enabled bool `mapstructure:"enabled"`
	// BudgetThresholdPercent is the consumed-budget share that arms the
	// budget trigger.
	BudgetThresholdPercent int `mapstructure:"budget_threshold_percent"`
	// ProgressThresholdPercent is the reported progress below which the
	// armed budget trigger fires.
	ProgressThresholdPercent int `mapstructure:"progress_threshold_percent"`
	// AllowExplicitRequest honors agent-initiated decomposition requests.
	AllowExplicitRequest bool `mapstructure:"allow_explicit_request"`
	// DetectComplexitySignals scans blockers for complexity keywords.
	DetectComplexitySignals bool `mapstructure:"detect_complexity_signals"`
	// ComplexityKeywords are matched against blocker descriptions.
	ComplexityKeywords []string `mapstructure:"complexity_keywords"`
	// SafetyBufferPercent shrinks the remaining budget before a plan is
	// validated against it.
	SafetyBufferPercent int `mapstructure:"safety_buffer_percent"`
	// MaxSubPhases is the maximum sub-phases per parent.
	MaxSubPhases int `mapstructure:"max_sub_phases"`
	// MinBudgetReserve is the parent budget that must stay unallocated.
	MinBudgetReserve int `mapstructure:"min_budget_reserve"`
}

// ContextConfig holds context window budget settings.
type ContextConfig struct {
	// LimitPercent caps context at a percentage of the model window.
	LimitPercent int `mapstructure:"limit_percent"`
	// LimitChars caps context at an absolute size, overriding LimitPercent.
	LimitChars int64 `mapstructure:"limit_chars"`
	// ModelWindowChars is the model context window size in characters.
	ModelWindowChars int64 `mapstructure:"model_window_chars"`
	// SafetyMarginPercent moves the compaction threshold below the limit.
	SafetyMarginPercent int `mapstructure:"safety_margin_percent"`
	// MinPreservedContext is the floor kept free for future iterations.
	MinPreservedContext int64 `mapstructure:"min_preserved_context"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FORGE_*)
// 2. Project config (.forge.yaml in current directory or a parent)
// 3. User config (~/.config/forge/config.yaml)
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

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

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

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("orchestrator.max_parallel", cfg.Orchestrator.MaxParallel)
	v.Set("orchestrator.fail_fast", cfg.Orchestrator.FailFast)
	v.Set("orchestrator.poll_interval", cfg.Orchestrator.PollInterval.String())
	v.Set("agent.command", cfg.Agent.Command)
	v.Set("agent.args", cfg.Agent.Args)
	v.Set("agent.model", cfg.Agent.Model)
	v.Set("decomposition.enabled", cfg.Decomposition.Enabled)
	v.Set("decomposition.budget_threshold_percent", cfg.Decomposition.BudgetThresholdPercent)
	v.Set("decomposition.progress_threshold_percent", cfg.Decomposition.ProgressThresholdPercent)
	v.Set("decomposition.allow_explicit_request", cfg.Decomposition.AllowExplicitRequest)
	v.Set("decomposition.detect_complexity_signals", cfg.Decomposition.DetectComplexitySignals)
	v.Set("decomposition.complexity_keywords", cfg.Decomposition.ComplexityKeywords)
	v.Set("decomposition.safety_buffer_percent", cfg.Decomposition.SafetyBufferPercent)
	v.Set("decomposition.max_sub_phases", cfg.Decomposition.MaxSubPhases)
	v.Set("decomposition.min_budget_reserve", cfg.Decomposition.MinBudgetReserve)
	v.Set("context.limit_percent", cfg.Context.LimitPercent)
	v.Set("context.limit_chars", cfg.Context.LimitChars)
	v.Set("context.model_window_chars", cfg.Context.ModelWindowChars)
	v.Set("context.safety_margin_percent", cfg.Context.SafetyMarginPercent)
	v.Set("context.min_preserved_context", cfg.Context.MinPreservedContext)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path if present.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.max_parallel", 2)
	v.SetDefault("orchestrator.fail_fast", true)
	v.SetDefault("orchestrator.poll_interval", "2s")

	v.SetDefault("agent.command", "claude")
	v.SetDefault("agent.args", []string{})
	v.SetDefault("agent.model", "")

	v.SetDefault("decomposition.enabled", true)
	v.SetDefault("decomposition.budget_threshold_percent", 50)
	v.SetDefault("decomposition.progress_threshold_percent", 30)
	v.SetDefault("decomposition.allow_explicit_request", true)
	v.SetDefault("decomposition.detect_complexity_signals", true)
	v.SetDefault("decomposition.complexity_keywords", []string{
		"too complex", "too large", "multiple components", "break this down", "large refactor",
	})
	v.SetDefault("decomposition.safety_buffer_percent", 10)
	v.SetDefault("decomposition.max_sub_phases", 8)
	v.SetDefault("decomposition.min_budget_reserve", 1)

	v.SetDefault("context.limit_percent", 80)
	v.SetDefault("context.limit_chars", 0)
	v.SetDefault("context.model_window_chars", 800_000)
	v.SetDefault("context.safety_margin_percent", 10)
	v.SetDefault("context.min_preserved_context", 20_000)
}

// getUserConfigDir returns the XDG config directory for Forge.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "forge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "forge")
	}
	return filepath.Join(home, ".config", "forge")
}

// findProjectConfig searches for .forge.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".forge.yaml")
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
		Orchestrator: OrchestratorConfig{
			MaxParallel:  2,
			FailFast:     true,
			PollInterval: 2 * time.Second,
		},
		Agent: AgentConfig{
			Command: "claude",
		},
		Decomposition: DecompositionConfig{
			Enabled:                  true,
			BudgetThresholdPercent:   50,
			ProgressThresholdPercent: 30,
			AllowExplicitRequest:     true,
			DetectComplexitySignals:  true,
			ComplexityKeywords: []string{
				"too complex", "too large", "multiple components", "break this down", "large refactor",
			},
			SafetyBufferPercent: 10,
			MaxSubPhases:        8,
			MinBudgetReserve:    1,
		},
		Context: ContextConfig{
			LimitPercent:        80,
			ModelWindowChars:    800_000,
			SafetyMarginPercent: 10,
			MinPreservedContext: 20_000,
		},
	}
}
