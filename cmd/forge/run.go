package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/backend"
	"github.com/jdsingh122918/forge/internal/config"
	"github.com/jdsingh122918/forge/internal/orchestrator"
	"github.com/jdsingh122918/forge/internal/phasefile"
	"github.com/jdsingh122918/forge/internal/state"
	"github.com/jdsingh122918/forge/pkg/models"
)

var (
	runModel   string
	runNoState bool
	runDebug   bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a phase plan",
	Long: `Execute a phase plan with the configured coding agent.

Phases run in dependency order. Each phase gets an iteration budget;
the agent is invoked once per iteration until it prints the phase's
completion promise or the budget runs out. When a phase fails, its
transitive dependents are skipped (disable with orchestrator.fail_fast).

A running plan can be controlled from another terminal:
  forge pause / forge resume / forge stop

Every phase transition is recorded in .forge/state.db unless
--no-state is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanFile,
}

func init() {
	runCmd.Flags().StringVar(&runModel, "model", "", "Override the configured agent model")
	runCmd.Flags().BoolVar(&runNoState, "no-state", false, "Do not record run history in the state database")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Write a debug log to .forge/logs/")
}

func runPlanFile(cmd *cobra.Command, args []string) error {
	planPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runModel != "" {
		cfg.Agent.Model = runModel
	}

	if err := CheckAgentCLI(cfg.Agent.Command); err != nil {
		return err
	}

	phases, err := phasefile.Load(planPath)
	if err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	var store *state.DB
	if !runNoState {
		store, err = state.OpenProject(workDir)
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrate state database: %w", err)
		}
	}

	var logger *orchestrator.DebugLogger
	if runDebug {
		logger = orchestrator.NewDebugLoggerForProject(workDir)
		defer logger.Close()
	}

	events := make(chan orchestrator.Event, 256)
	done := make(chan struct{})
	go printEvents(events, done)

	orch, err := orchestrator.New(phases, orchestrator.Options{
		Backend: backend.NewSubprocess(backend.SubprocessConfig{
			Command: cfg.Agent.Command,
			Args:    cfg.Agent.Args,
			Model:   cfg.Agent.Model,
		}),
		Config:   cfg,
		Store:    store,
		Logger:   logger,
		Events:   events,
		WorkDir:  workDir,
		PlanName: planName(planPath),
		PlanPath: planPath,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	report, runErr := orch.Run(ctx)
	close(events)
	<-done

	if report != nil {
		printReport(report, len(phases))
	}
	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	if report != nil && !report.Success {
		return fmt.Errorf("run finished with failures")
	}
	return nil
}

// planName derives a display name from the plan file path.
func planName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// printEvents renders run progress until the event channel closes.
func printEvents(events <-chan orchestrator.Event, done chan<- struct{}) {
	defer close(done)

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for e := range events {
		switch e.Type {
		case orchestrator.EventPhaseStarted:
			fmt.Printf("%s %s: %s (budget %d)\n", cyan("→"), e.PhaseID, e.PhaseName, e.Budget)
		case orchestrator.EventPhaseIteration:
			fmt.Printf("    iteration %d/%d, context %s chars\n",
				e.Iteration, e.Budget, formatNumber(int(e.ContextUsed)))
		case orchestrator.EventPhaseCompleted:
			fmt.Printf("%s %s completed in %d iterations\n", green("✓"), e.PhaseID, e.Iteration)
		case orchestrator.EventPhaseFailed:
			fmt.Printf("%s %s failed: %v\n", red("✗"), e.PhaseID, e.Error)
		case orchestrator.EventPhaseSkipped:
			fmt.Printf("%s %s skipped (dependency failed)\n", yellow("-"), e.PhaseID)
		case orchestrator.EventPhaseDecomposed:
			fmt.Printf("%s %s decomposed: %s\n", yellow("⑂"), e.PhaseID, e.Message)
		case orchestrator.EventSubPhaseStarted:
			fmt.Printf("  %s %s: %s (budget %d)\n", cyan("→"), e.PhaseID, e.PhaseName, e.Budget)
		case orchestrator.EventSubPhaseCompleted:
			fmt.Printf("  %s %s completed in %d iterations\n", green("✓"), e.PhaseID, e.Iteration)
		case orchestrator.EventSubPhaseFailed:
			fmt.Printf("  %s %s failed: %s\n", red("✗"), e.PhaseID, e.Message)
		case orchestrator.EventCompaction:
			fmt.Printf("    %s %s\n", yellow("≈"), e.Message)
		case orchestrator.EventRunDone:
			fmt.Printf("\n%s\n", e.Message)
		}
	}
}

// printReport prints the final per-status phase counts.
func printReport(report *orchestrator.RunReport, total int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if report.Success {
		fmt.Printf("%s all %d phases completed (run %s)\n", green("✓"), total, report.RunID)
		return
	}

	fmt.Printf("%s run %s did not complete:\n", red("✗"), report.RunID)
	for _, status := range []models.PhaseStatus{
		models.StatusCompleted, models.StatusFailed, models.StatusSkipped, models.StatusPending,
	} {
		if n := report.Counts[status]; n > 0 {
			fmt.Printf("  %s: %d\n", status, n)
		}
	}
}
