// Package backend abstracts the external coding agent that Forge
// drives. A backend runs one agent iteration at a time and reports
// what happened through the IterationResult contract; Forge itself
// never inspects the agent's work directly.
package backend

import (
	"context"

	"github.com/jdsingh122918/forge/pkg/models"
)

// IterationRequest describes one agent iteration.
type IterationRequest struct {
	// Prompt is the full prompt for this iteration.
	Prompt string
	// WorkDir is the working directory for the agent process.
	WorkDir string
	// Promise is the sentinel string whose presence in the output marks
	// the unit of work complete.
	Promise string
	// PermissionMode controls what the agent may do.
	PermissionMode models.PermissionMode
	// Skills lists agent skills to load.
	Skills []string
	// Model overrides the configured model when non-empty.
	Model string
}

// Backend runs agent iterations.
type Backend interface {
	// RunIteration executes one iteration and reports the outcome.
	// An error means the backend itself failed; an unproductive
	// iteration is a successful call with PromiseFound false.
	RunIteration(ctx context.Context, req IterationRequest) (*models.IterationResult, error)
}
