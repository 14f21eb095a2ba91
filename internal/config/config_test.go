package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Orchestrator.MaxParallel != 2 {
		t.Errorf("expected max_parallel 2, got %d", cfg.Orchestrator.MaxParallel)
	}
	if !cfg.Orchestrator.FailFast {
		t.Error("expected fail_fast enabled by default")
	}
	if cfg.Decomposition.BudgetThresholdPercent != 50 {
		t.Errorf("expected budget threshold 50, got %d", cfg.Decomposition.BudgetThresholdPercent)
	}
	if cfg.Context.LimitPercent != 80 {
		t.Errorf("expected context limit 80%%, got %d", cfg.Context.LimitPercent)
	}
	if cfg.Context.LimitChars != 0 {
		t.Errorf("expected no absolute limit by default, got %d", cfg.Context.LimitChars)
	}
	if len(cfg.Decomposition.ComplexityKeywords) == 0 {
		t.Error("expected default complexity keywords")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `orchestrator:
  max_parallel: 4
  fail_fast: false
  poll_interval: 5s
agent:
  command: my-agent
  model: test-model
decomposition:
  budget_threshold_percent: 60
  max_sub_phases: 3
context:
  limit_chars: 100000
  safety_margin_percent: 15
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orchestrator.MaxParallel != 4 {
		t.Errorf("expected max_parallel 4, got %d", cfg.Orchestrator.MaxParallel)
	}
	if cfg.Orchestrator.FailFast {
		t.Error("expected fail_fast disabled")
	}
	if cfg.Orchestrator.PollInterval != 5*time.Second {
		t.Errorf("expected poll_interval 5s, got %v", cfg.Orchestrator.PollInterval)
	}
	if cfg.Agent.Command != "my-agent" {
		t.Errorf("expected agent command my-agent, got %s", cfg.Agent.Command)
	}
	if cfg.Decomposition.BudgetThresholdPercent != 60 {
		t.Errorf("expected budget threshold 60, got %d", cfg.Decomposition.BudgetThresholdPercent)
	}
	if cfg.Decomposition.MaxSubPhases != 3 {
		t.Errorf("expected max_sub_phases 3, got %d", cfg.Decomposition.MaxSubPhases)
	}
	if cfg.Context.LimitChars != 100_000 {
		t.Errorf("expected limit_chars 100000, got %d", cfg.Context.LimitChars)
	}
}

func TestLoadFromPathDefaultsFillGaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	// Only one section set; everything else comes from defaults.
	if err := os.WriteFile(path, []byte("agent:\n  command: other\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Agent.Command != "other" {
		t.Errorf("expected agent command other, got %s", cfg.Agent.Command)
	}
	if !cfg.Decomposition.Enabled {
		t.Error("expected decomposition enabled by default")
	}
	if cfg.Context.ModelWindowChars != 800_000 {
		t.Errorf("expected default model window, got %d", cfg.Context.ModelWindowChars)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Orchestrator.MaxParallel = 7
	cfg.Decomposition.MinBudgetReserve = 2

	if err := Save(cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Orchestrator.MaxParallel != 7 {
		t.Errorf("expected max_parallel 7 after reload, got %d", loaded.Orchestrator.MaxParallel)
	}
	if loaded.Decomposition.MinBudgetReserve != 2 {
		t.Errorf("expected min_budget_reserve 2 after reload, got %d", loaded.Decomposition.MinBudgetReserve)
	}
}
