package backend

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jdsingh122918/forge/pkg/models"
)

// SubprocessConfig holds the agent command line.
type SubprocessConfig struct {
	// Command is the agent executable.
	Command string
	// Args are extra arguments passed before the prompt.
	Args []string
	// Model is the default model identifier, overridable per request.
	Model string
}

// Subprocess runs the agent as a child process, one invocation per
// iteration, and parses its combined output for the promise and
// signal markers.
type Subprocess struct {
	cfg SubprocessConfig
}

// NewSubprocess creates a subprocess backend.
func NewSubprocess(cfg SubprocessConfig) *Subprocess {
	return &Subprocess{cfg: cfg}
}

// RunIteration executes one agent invocation.
// A non-zero agent exit with output still yields a result: the agent
// may have made progress before failing, and the iteration is counted
// either way.
func (s *Subprocess) RunIteration(ctx context.Context, req IterationRequest) (*models.IterationResult, error) {
	if s.cfg.Command == "" {
		return nil, fmt.Errorf("no agent command configured")
	}

	args := append([]string(nil), s.cfg.Args...)

	model := s.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	if req.PermissionMode != "" && req.PermissionMode != models.PermissionDefault {
		args = append(args, "--permission-mode", string(req.PermissionMode))
	}
	for _, skill := range req.Skills {
		args = append(args, "--skill", skill)
	}

	args = append(args, "-p", req.Prompt)

	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}

	output, runErr := cmd.CombinedOutput()
	if runErr != nil && len(output) == 0 {
		return nil, fmt.Errorf("agent process: %w", runErr)
	}

	text := string(output)
	return &models.IterationResult{
		PromiseFound: PromiseFound(text, req.Promise),
		PromptChars:  int64(len(req.Prompt)),
		OutputChars:  int64(len(text)),
		Signals:      ParseSignals(text),
	}, nil
}

var _ Backend = (*Subprocess)(nil)
