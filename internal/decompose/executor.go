package decompose

import (
	"errors"
	"fmt"

	"github.com/jdsingh122918/forge/internal/subphase"
	"github.com/jdsingh122918/forge/pkg/models"
)

// ErrEmptyPlan indicates the plan contained no tasks.
var ErrEmptyPlan = errors.New("decomposition plan has no tasks")

// ErrOverBudget indicates the plan's total budget exceeds what the
// phase has left. Over-budget plans are rejected whole, never truncated.
var ErrOverBudget = errors.New("decomposition plan exceeds available budget")

// ExecutorConfig controls plan validation and sub-phase creation.
type ExecutorConfig struct {
	// SafetyBufferPercent shrinks the remaining budget before plan
	// validation, so a decomposed phase finishes inside what the phase
	// would have consumed undecomposed.
	SafetyBufferPercent int
	// Spawn is the shared sub-phase spawn policy.
	Spawn subphase.Config
}

// Executor validates decomposition plans and converts them into
// sub-phases on the parent phase.
type Executor struct {
	cfg     ExecutorConfig
	manager *subphase.Manager
}

// NewExecutor creates an Executor with the given configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{
		cfg:     cfg,
		manager: subphase.NewManager(cfg.Spawn),
	}
}

// AvailableBudget returns the iterations a plan may claim given the
// phase's remaining budget after the safety buffer.
func (e *Executor) AvailableBudget(remaining int) int {
	available := remaining - remaining*e.cfg.SafetyBufferPercent/100
	if available < 0 {
		return 0
	}
	return available
}

// ConvertToSubPhases validates a plan against the phase's remaining
// budget and, on success, appends one sub-phase per task and returns a
// DecomposedPhase tracking task-level execution. On any rejection the
// phase is left exactly as it was.
func (e *Executor) ConvertToSubPhases(phase *models.Phase, plan *models.DecompositionPlan, iterationsUsed int, reason string) (*DecomposedPhase, error) {
	if plan == nil || len(plan.Tasks) == 0 {
		return nil, ErrEmptyPlan
	}

	// Structural validation: unique task IDs, positive budgets,
	// resolvable dependencies. A non-positive budget would offset the
	// plan total and let a sibling claim more than the parent has.
	ids := make(map[string]bool, len(plan.Tasks))
	for _, task := range plan.Tasks {
		if task.ID == "" {
			return nil, fmt.Errorf("plan task %q has no id", task.Name)
		}
		if ids[task.ID] {
			return nil, fmt.Errorf("duplicate task id %s in plan", task.ID)
		}
		if task.Budget <= 0 {
			return nil, fmt.Errorf("task %s has non-positive budget %d", task.ID, task.Budget)
		}
		ids[task.ID] = true
	}
	for _, task := range plan.Tasks {
		for _, dep := range task.DependsOn {
			if !ids[dep] {
				return nil, fmt.Errorf("task %s depends on unknown task %s", task.ID, dep)
			}
		}
	}

	remaining := phase.Budget - iterationsUsed
	available := e.AvailableBudget(remaining)
	if total := plan.TotalBudget(); total > available {
		return nil, fmt.Errorf("%w: plan needs %d iterations, %d available (%d remaining, %d%% buffer)",
			ErrOverBudget, total, available, remaining, e.cfg.SafetyBufferPercent)
	}

	// Spawn into a scratch copy so a mid-plan rejection leaves the
	// phase untouched.
	scratch := *phase
	scratch.SubPhases = append([]models.SubPhase(nil), phase.SubPhases...)

	tasks := make([]*TaskState, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		// Number the promise by the spawned order so it always matches
		// the sub-phase ID, even for a parent with prior sub-phases.
		order := len(scratch.SubPhases) + 1
		sp, err := e.manager.Spawn(&scratch, subphase.SpawnRequest{
			Name:    task.Name,
			Promise: fmt.Sprintf("%s SUBTASK %d COMPLETE", phase.Promise, order),
			Budget:  task.Budget,
		})
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, err)
		}
		tasks = append(tasks, &TaskState{
			ID:          task.ID,
			Name:        task.Name,
			Description: task.Description,
			Budget:      task.Budget,
			DependsOn:   append([]string(nil), task.DependsOn...),
			Status:      models.StatusPending,
			SubPhaseID:  sp.ID,
		})
	}

	phase.SubPhases = scratch.SubPhases

	return &DecomposedPhase{
		Phase:  phase,
		Reason: reason,
		tasks:  tasks,
	}, nil
}
