package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run state for this project",
	Long: `Display the run history recorded in the state database.

Shows the active run with per-phase statuses, if one is in progress,
followed by recent finished runs.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	// Try project database first, then global.
	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history. Run 'forge run <plan.yaml>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	run, err := db.GetActiveRun()
	if err != nil {
		return fmt.Errorf("get active run: %w", err)
	}

	if run == nil {
		fmt.Println("No active run.")
		return displayRecentRuns(db)
	}

	displayRun(db, run)
	fmt.Println()
	return displayRecentRuns(db)
}

func displayRun(db *state.DB, r *state.Run) {
	elapsed := formatDuration(time.Since(r.StartedAt))

	fmt.Printf("Current Run: %s\n", r.ID)
	fmt.Printf("  Plan: %s\n", r.PlanName)
	fmt.Printf("  Started: %s ago\n", elapsed)
	fmt.Printf("  Status: %s\n", r.Status)

	statuses, err := db.LatestPhaseStatuses(r.ID)
	if err != nil || len(statuses) == 0 {
		return
	}

	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("  Phases:")
	for _, id := range ids {
		fmt.Printf("    %s: %s\n", id, statuses[id])
	}
}

func displayRecentRuns(db *state.DB) error {
	runs, err := db.ListRuns(nil)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	var recent []state.Run
	for _, r := range runs {
		if r.Status != state.RunActive {
			recent = append(recent, r)
			if len(recent) >= 5 {
				break
			}
		}
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Println("Recent Runs:")
	for _, r := range recent {
		elapsed := formatDuration(time.Since(r.StartedAt))
		fmt.Printf("  %s: %s %s (%s ago)\n", r.ID, r.PlanName, r.Status, elapsed)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		if len(s) > offset {
			result.WriteString(",")
		}
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
