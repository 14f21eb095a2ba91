package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// CheckAgentCLI verifies that the configured agent executable is
// available in PATH. Returns an error with guidance if not found.
func CheckAgentCLI(command string) error {
	if command == "" {
		return fmt.Errorf("no agent command configured\n\n" +
			"Set one with:\n" +
			"  forge config agent.command <executable>")
	}
	_, err := exec.LookPath(command)
	if err != nil {
		return fmt.Errorf("agent CLI %q not found in PATH\n\n"+
			"Forge drives an external coding agent CLI, one invocation per iteration.\n"+
			"Install the agent or point Forge at a different one:\n"+
			"  forge config agent.command <executable>", command)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Phase plan orchestrator for autonomous coding agents",
	Long: `Forge drives an external coding agent through a phase plan: a
dependency graph of phases, each with an iteration budget and a
completion promise the agent must print verbatim.

Forge decides what runs next, detects when a phase should be split
into sub-phases, tracks the agent's context budget, and records every
phase transition in a local state database.

Core capabilities:
- Schedules phases in dependency order, skipping dependents on failure
- Decomposes oversized phases into budgeted sub-phases
- Compacts iteration history before the context window fills
- Pause, resume, and stop a running plan from another terminal`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}
