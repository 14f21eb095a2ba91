package backend

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jdsingh122918/forge/pkg/models"
)

// Plan output markers. The agent emits the plan as YAML between these
// two lines.
const (
	planBegin = "BEGIN PLAN"
	planEnd   = "END PLAN"
)

// PlanRequest asks the agent to propose a decomposition of a phase.
type PlanRequest struct {
	// Phase is the phase to split.
	Phase *models.Phase
	// Reason is why decomposition was triggered.
	Reason string
	// MaxTasks caps the number of proposed tasks. Zero means no cap.
	MaxTasks int
	// AvailableBudget is the iteration total the plan may claim.
	AvailableBudget int
	// WorkDir is the working directory for the agent process.
	WorkDir string
}

// Planner produces decomposition plans. Backends that can ask the
// agent for a plan implement this alongside Backend.
type Planner interface {
	PlanDecomposition(ctx context.Context, req PlanRequest) (*models.DecompositionPlan, error)
}

// PlanDecomposition runs the agent once with a planning prompt and
// parses the YAML plan from its output.
func (s *Subprocess) PlanDecomposition(ctx context.Context, req PlanRequest) (*models.DecompositionPlan, error) {
	if s.cfg.Command == "" {
		return nil, fmt.Errorf("no agent command configured")
	}

	args := append([]string(nil), s.cfg.Args...)
	if s.cfg.Model != "" {
		args = append(args, "--model", s.cfg.Model)
	}
	args = append(args, "-p", buildPlanPrompt(req))

	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}

	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		return nil, fmt.Errorf("agent process: %w", err)
	}

	return ExtractPlan(string(output))
}

// ExtractPlan parses a YAML decomposition plan delimited by the plan
// markers in agent output.
func ExtractPlan(output string) (*models.DecompositionPlan, error) {
	begin := strings.Index(output, planBegin)
	if begin < 0 {
		return nil, fmt.Errorf("no %s marker in agent output", planBegin)
	}
	rest := output[begin+len(planBegin):]
	end := strings.Index(rest, planEnd)
	if end < 0 {
		return nil, fmt.Errorf("no %s marker in agent output", planEnd)
	}

	var plan models.DecompositionPlan
	if err := yaml.Unmarshal([]byte(rest[:end]), &plan); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	return &plan, nil
}

// buildPlanPrompt composes the planning prompt.
func buildPlanPrompt(req PlanRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The task %q is being split into smaller tasks.\n", req.Phase.Name)
	fmt.Fprintf(&b, "Trigger: %s\n\n", req.Reason)
	fmt.Fprintf(&b, "Propose a plan of independent tasks with dependencies between them.\n")
	fmt.Fprintf(&b, "The budgets of all tasks together must not exceed %d iterations.\n", req.AvailableBudget)
	if req.MaxTasks > 0 {
		fmt.Fprintf(&b, "Propose at most %d tasks.\n", req.MaxTasks)
	}
	fmt.Fprintf(&b, "\nEmit the plan as YAML between %q and %q lines:\n", planBegin, planEnd)
	b.WriteString(planBegin + "\n")
	b.WriteString("tasks:\n  - id: short-id\n    name: what to do\n    description: detail\n    budget: 2\n    depends_on: [other-id]\n")
	b.WriteString(planEnd + "\n")
	return b.String()
}

// ScriptPlan makes the scripted backend return a fixed plan for a
// phase ID.
func (s *Scripted) ScriptPlan(phaseID string, plan *models.DecompositionPlan) {
	if s.plans == nil {
		s.plans = make(map[string]*models.DecompositionPlan)
	}
	s.plans[phaseID] = plan
}

// PlanDecomposition replays a scripted plan.
func (s *Scripted) PlanDecomposition(_ context.Context, req PlanRequest) (*models.DecompositionPlan, error) {
	plan, ok := s.plans[req.Phase.ID]
	if !ok {
		return nil, fmt.Errorf("no scripted plan for phase %s", req.Phase.ID)
	}
	return plan, nil
}

var (
	_ Planner = (*Subprocess)(nil)
	_ Planner = (*Scripted)(nil)
)
