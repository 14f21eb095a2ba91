package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jdsingh122918/forge/internal/orchestrator"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the run in this project before its next iteration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal("pause")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal("resume")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the run in this project before its next iteration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendSignal("stop")
	},
}

// sendSignal drops a signal file for the orchestrator running in the
// current project. The running process picks it up before its next
// iteration.
func sendSignal(name string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	if err := orchestrator.SendSignal(cwd, name); err != nil {
		return fmt.Errorf("send %s signal: %w", name, err)
	}
	fmt.Printf("Sent %s signal\n", name)
	return nil
}
