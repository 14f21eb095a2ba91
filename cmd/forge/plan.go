package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/graph"
	"github.com/jdsingh122918/forge/internal/phasefile"
	"github.com/jdsingh122918/forge/internal/scheduler"
	"github.com/jdsingh122918/forge/pkg/models"
)

var planCmd = &cobra.Command{
	Use:   "plan <plan.yaml>",
	Short: "Show the execution waves for a plan",
	Long: `Show how a plan would execute without running it.

Phases are grouped into waves: every phase in a wave has all its
dependencies satisfied by earlier waves, so a wave's phases could run
in parallel.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanPreview,
}

func runPlanPreview(cmd *cobra.Command, args []string) error {
	phases, err := phasefile.Load(args[0])
	if err != nil {
		return err
	}

	refs := make([]*models.Phase, len(phases))
	for i := range phases {
		refs[i] = &phases[i]
	}
	g, err := graph.Build(refs)
	if err != nil {
		return err
	}

	waves := scheduler.New(g).ComputeWaves()
	cyan := color.New(color.FgCyan).SprintFunc()

	totalBudget := 0
	for i, wave := range waves {
		fmt.Printf("%s\n", cyan(fmt.Sprintf("Wave %d:", i+1)))
		for _, id := range wave {
			p := g.Phase(id)
			deps := ""
			if len(p.DependsOn) > 0 {
				deps = fmt.Sprintf(" (after %v)", p.DependsOn)
			}
			fmt.Printf("  %s: %s, budget %d%s\n", p.ID, p.Name, p.Budget, deps)
			totalBudget += p.Budget
		}
	}

	fmt.Printf("\n%d phases in %d waves, %d iterations budgeted\n",
		len(phases), len(waves), totalBudget)
	return nil
}
