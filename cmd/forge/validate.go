package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/phasefile"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Validate a plan file without running it",
	Long: `Validate a plan file.

Checks every phase for a number, name, promise, and positive budget,
and the plan as a whole for duplicate IDs, unknown dependencies, and
dependency cycles.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		phases, err := phasefile.Load(args[0])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s: %d phases, plan is valid\n", green("✓"), args[0], len(phases))
		return nil
	},
}
