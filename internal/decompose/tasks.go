package decompose

import (
	"fmt"

	"github.com/jdsingh122918/forge/pkg/models"
)

// TaskState is the runtime state of one task in an executing
// decomposition. Tasks reference each other by plan-local ID rather
// than structural edges.
type TaskState struct {
	// ID is the plan-local task identifier.
	ID string
	// Name is the short description of the task.
	Name string
	// Description is the detail passed to the agent.
	Description string
	// Budget is the task's iteration budget.
	Budget int
	// DependsOn lists task IDs that must complete first.
	DependsOn []string
	// Status is the current state of the task.
	Status models.PhaseStatus
	// IterationsUsed is the number of iterations consumed.
	IterationsUsed int
	// Error contains the failure message if the task failed.
	Error string
	// SubPhaseID is the sub-phase this task was converted into.
	SubPhaseID string
}

// DecomposedPhase tracks the execution of a validated decomposition:
// task readiness, failure propagation, and completion statistics.
// Plans arrive freshly generated and structurally validated, so task
// dependencies are assumed acyclic and not re-checked; a cyclic plan
// simply yields no ready tasks.
type DecomposedPhase struct {
	// Phase is the parent the sub-phases were appended to.
	Phase *models.Phase
	// Reason records which trigger caused the decomposition.
	Reason string

	tasks []*TaskState
}

// Tasks returns the tasks in plan order.
func (d *DecomposedPhase) Tasks() []*TaskState {
	return d.tasks
}

// Task returns the task with the given ID, or nil.
func (d *DecomposedPhase) Task(id string) *TaskState {
	for _, t := range d.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ReadyTasks returns Pending tasks whose dependencies are all
// Completed, in plan order.
func (d *DecomposedPhase) ReadyTasks() []*TaskState {
	completed := make(map[string]bool, len(d.tasks))
	for _, t := range d.tasks {
		if t.Status == models.StatusCompleted {
			completed[t.ID] = true
		}
	}

	var ready []*TaskState
	for _, t := range d.tasks {
		if t.Status != models.StatusPending {
			continue
		}
		ok := true
		for _, dep := range t.DependsOn {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// StartTask transitions a Pending task to InProgress.
func (d *DecomposedPhase) StartTask(id string) error {
	t := d.Task(id)
	if t == nil {
		return fmt.Errorf("no task %s in decomposition", id)
	}
	if t.Status != models.StatusPending {
		return fmt.Errorf("task %s is %s, cannot start", id, t.Status)
	}
	t.Status = models.StatusInProgress
	return nil
}

// CompleteTask transitions a task to Completed with its iteration count.
// A no-op on terminal tasks.
func (d *DecomposedPhase) CompleteTask(id string, iterationsUsed int) error {
	t := d.Task(id)
	if t == nil {
		return fmt.Errorf("no task %s in decomposition", id)
	}
	if t.Status.Terminal() {
		return nil
	}
	t.Status = models.StatusCompleted
	t.IterationsUsed = iterationsUsed
	return nil
}

// FailTask transitions a task to Failed and skips every task that
// transitively depends on it.
func (d *DecomposedPhase) FailTask(id string, reason string) error {
	t := d.Task(id)
	if t == nil {
		return fmt.Errorf("no task %s in decomposition", id)
	}
	if t.Status.Terminal() {
		return nil
	}
	t.Status = models.StatusFailed
	t.Error = reason

	d.skipDependentTasks()
	return nil
}

// skipDependentTasks marks every non-terminal task that depends on a
// failed or skipped task as Skipped. Tasks reference each other by ID
// rather than structural edges, so this iterates to a fixed point:
// repeat until a pass adds no new skip.
func (d *DecomposedPhase) skipDependentTasks() {
	blocked := make(map[string]bool, len(d.tasks))
	for _, t := range d.tasks {
		if t.Status == models.StatusFailed || t.Status == models.StatusSkipped {
			blocked[t.ID] = true
		}
	}

	for {
		changed := false
		for _, t := range d.tasks {
			if t.Status.Terminal() {
				continue
			}
			for _, dep := range t.DependsOn {
				if blocked[dep] {
					t.Status = models.StatusSkipped
					blocked[t.ID] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			return
		}
	}
}

// AllComplete returns true once every task is terminal.
func (d *DecomposedPhase) AllComplete() bool {
	for _, t := range d.tasks {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// AllSuccess returns true if every task Completed.
func (d *DecomposedPhase) AllSuccess() bool {
	for _, t := range d.tasks {
		if t.Status != models.StatusCompleted {
			return false
		}
	}
	return true
}

// CompletionPercentage returns the share of terminal tasks, 0-100.
func (d *DecomposedPhase) CompletionPercentage() float64 {
	if len(d.tasks) == 0 {
		return 100
	}
	terminal := 0
	for _, t := range d.tasks {
		if t.Status.Terminal() {
			terminal++
		}
	}
	return float64(terminal) / float64(len(d.tasks)) * 100
}

// ExecutionSummary aggregates task execution results.
type ExecutionSummary struct {
	// Counts is the number of tasks per status.
	Counts map[models.PhaseStatus]int
	// TotalBudget is the budget allocated across all tasks.
	TotalBudget int
	// TotalIterations is the iterations actually consumed.
	TotalIterations int
}

// Summary computes an ExecutionSummary over the tasks.
func (d *DecomposedPhase) Summary() ExecutionSummary {
	s := ExecutionSummary{Counts: make(map[models.PhaseStatus]int)}
	for _, t := range d.tasks {
		s.Counts[t.Status]++
		s.TotalBudget += t.Budget
		s.TotalIterations += t.IterationsUsed
	}
	return s
}
