package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Forge version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forge %s\n", version.Get())
	},
}
