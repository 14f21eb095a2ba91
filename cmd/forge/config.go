package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Forge configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/forge/config.yaml
Project-specific overrides can be placed in .forge.yaml`,
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
	fmt.Printf("orchestrator.max_parallel: %d\n", cfg.Orchestrator.MaxParallel)
	fmt.Printf("orchestrator.fail_fast: %t\n", cfg.Orchestrator.FailFast)
	fmt.Printf("orchestrator.poll_interval: %s\n", cfg.Orchestrator.PollInterval)
	fmt.Printf("agent.command: %s\n", cfg.Agent.Command)
	fmt.Printf("agent.args: %s\n", strings.Join(cfg.Agent.Args, " "))
	fmt.Printf("agent.model: %s\n", cfg.Agent.Model)
	fmt.Printf("decomposition.enabled: %t\n", cfg.Decomposition.Enabled)
	fmt.Printf("decomposition.budget_threshold_percent: %d\n", cfg.Decomposition.BudgetThresholdPercent)
	fmt.Printf("decomposition.progress_threshold_percent: %d\n", cfg.Decomposition.ProgressThresholdPercent)
	fmt.Printf("decomposition.allow_explicit_request: %t\n", cfg.Decomposition.AllowExplicitRequest)
	fmt.Printf("decomposition.detect_complexity_signals: %t\n", cfg.Decomposition.DetectComplexitySignals)
	fmt.Printf("decomposition.safety_buffer_percent: %d\n", cfg.Decomposition.SafetyBufferPercent)
	fmt.Printf("decomposition.max_sub_phases: %d\n", cfg.Decomposition.MaxSubPhases)
	fmt.Printf("decomposition.min_budget_reserve: %d\n", cfg.Decomposition.MinBudgetReserve)
	fmt.Printf("context.limit_percent: %d\n", cfg.Context.LimitPercent)
	fmt.Printf("context.limit_chars: %d\n", cfg.Context.LimitChars)
	fmt.Printf("context.model_window_chars: %d\n", cfg.Context.ModelWindowChars)
	fmt.Printf("context.safety_margin_percent: %d\n", cfg.Context.SafetyMarginPercent)
	fmt.Printf("context.min_preserved_context: %d\n", cfg.Context.MinPreservedContext)
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

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "orchestrator.max_parallel":
		return strconv.Itoa(cfg.Orchestrator.MaxParallel), nil
	case "orchestrator.fail_fast":
		return strconv.FormatBool(cfg.Orchestrator.FailFast), nil
	case "orchestrator.poll_interval":
		return cfg.Orchestrator.PollInterval.String(), nil
	case "agent.command":
		return cfg.Agent.Command, nil
	case "agent.model":
		return cfg.Agent.Model, nil
	case "decomposition.enabled":
		return strconv.FormatBool(cfg.Decomposition.Enabled), nil
	case "decomposition.budget_threshold_percent":
		return strconv.Itoa(cfg.Decomposition.BudgetThresholdPercent), nil
	case "decomposition.progress_threshold_percent":
		return strconv.Itoa(cfg.Decomposition.ProgressThresholdPercent), nil
	case "decomposition.allow_explicit_request":
		return strconv.FormatBool(cfg.Decomposition.AllowExplicitRequest), nil
	case "decomposition.detect_complexity_signals":
		return strconv.FormatBool(cfg.Decomposition.DetectComplexitySignals), nil
	case "decomposition.safety_buffer_percent":
		return strconv.Itoa(cfg.Decomposition.SafetyBufferPercent), nil
	case "decomposition.max_sub_phases":
		return strconv.Itoa(cfg.Decomposition.MaxSubPhases), nil
	case "decomposition.min_budget_reserve":
		return strconv.Itoa(cfg.Decomposition.MinBudgetReserve), nil
	case "context.limit_percent":
		return strconv.Itoa(cfg.Context.LimitPercent), nil
	case "context.limit_chars":
		return strconv.FormatInt(cfg.Context.LimitChars, 10), nil
	case "context.model_window_chars":
		return strconv.FormatInt(cfg.Context.ModelWindowChars, 10), nil
	case "context.safety_margin_percent":
		return strconv.Itoa(cfg.Context.SafetyMarginPercent), nil
	case "context.min_preserved_context":
		return strconv.FormatInt(cfg.Context.MinPreservedContext, 10), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "orchestrator.max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_parallel: %w", err)
		}
		cfg.Orchestrator.MaxParallel = n
	case "orchestrator.fail_fast":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for fail_fast: %w", err)
		}
		cfg.Orchestrator.FailFast = b
	case "orchestrator.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for poll_interval: %w", err)
		}
		cfg.Orchestrator.PollInterval = d
	case "agent.command":
		cfg.Agent.Command = value
	case "agent.model":
		cfg.Agent.Model = value
	case "decomposition.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for decomposition.enabled: %w", err)
		}
		cfg.Decomposition.Enabled = b
	case "decomposition.budget_threshold_percent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for budget_threshold_percent: %w", err)
		}
		cfg.Decomposition.BudgetThresholdPercent = n
	case "decomposition.progress_threshold_percent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for progress_threshold_percent: %w", err)
		}
		cfg.Decomposition.ProgressThresholdPercent = n
	case "decomposition.allow_explicit_request":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for allow_explicit_request: %w", err)
		}
		cfg.Decomposition.AllowExplicitRequest = b
	case "decomposition.detect_complexity_signals":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for detect_complexity_signals: %w", err)
		}
		cfg.Decomposition.DetectComplexitySignals = b
	case "decomposition.safety_buffer_percent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for safety_buffer_percent: %w", err)
		}
		cfg.Decomposition.SafetyBufferPercent = n
	case "decomposition.max_sub_phases":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_sub_phases: %w", err)
		}
		cfg.Decomposition.MaxSubPhases = n
	case "decomposition.min_budget_reserve":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for min_budget_reserve: %w", err)
		}
		cfg.Decomposition.MinBudgetReserve = n
	case "context.limit_percent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for limit_percent: %w", err)
		}
		cfg.Context.LimitPercent = n
	case "context.limit_chars":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for limit_chars: %w", err)
		}
		cfg.Context.LimitChars = n
	case "context.model_window_chars":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for model_window_chars: %w", err)
		}
		cfg.Context.ModelWindowChars = n
	case "context.safety_margin_percent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for safety_margin_percent: %w", err)
		}
		cfg.Context.SafetyMarginPercent = n
	case "context.min_preserved_context":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for min_preserved_context: %w", err)
		}
		cfg.Context.MinPreservedContext = n
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
