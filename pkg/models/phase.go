// Package models defines the shared data model for Forge: phases,
// sub-phases, decomposition plans, and the iteration result contract
// with the execution backend.
package models

import "fmt"

// PhaseStatus represents the current state of a phase, sub-phase, or
// decomposition task.
type PhaseStatus string

const (
	// StatusPending indicates the unit has not started.
	StatusPending PhaseStatus = "pending"
	// StatusInProgress indicates the unit is being worked on.
	StatusInProgress PhaseStatus = "in_progress"
	// StatusCompleted indicates the unit completed successfully.
	StatusCompleted PhaseStatus = "completed"
	// StatusFailed indicates the unit failed.
	StatusFailed PhaseStatus = "failed"
	// StatusSkipped indicates the unit was skipped because a dependency failed.
	StatusSkipped PhaseStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s PhaseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final and cannot transition further.
func (s PhaseStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// PermissionMode controls what the agent is allowed to do during a phase.
type PermissionMode string

const (
	// PermissionDefault prompts for dangerous operations.
	PermissionDefault PermissionMode = "default"
	// PermissionAcceptEdits auto-accepts file edits.
	PermissionAcceptEdits PermissionMode = "accept_edits"
	// PermissionReadonly forbids all mutations.
	PermissionReadonly PermissionMode = "readonly"
	// PermissionBypass skips all permission checks.
	PermissionBypass PermissionMode = "bypass"
)

// PhaseType categorizes a phase for scheduling and review decisions.
type PhaseType string

const (
	// PhaseTypeStandard is a normal implementation phase.
	PhaseTypeStandard PhaseType = "standard"
	// PhaseTypeSetup is an environment or scaffolding phase.
	PhaseTypeSetup PhaseType = "setup"
	// PhaseTypeReadonly is an analysis phase that must not modify files.
	PhaseTypeReadonly PhaseType = "readonly"
	// PhaseTypeReview is a review pass over earlier phases.
	PhaseTypeReview PhaseType = "review"
)

// ReviewConfig holds review settings for a phase.
type ReviewConfig struct {
	// Enabled turns on a review pass after the phase completes.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Reviewer is the skill or agent profile performing the review.
	Reviewer string `yaml:"reviewer,omitempty" json:"reviewer,omitempty"`
}

// SubPhase is a child unit of work carved from a parent phase's remaining
// budget. Its ID is "<parent>.<order>" with a dense, 1-based order.
type SubPhase struct {
	// ID is "<parent>.<order>", unique within the run.
	ID string `yaml:"id" json:"id"`
	// Name is the short description of the sub-phase.
	Name string `yaml:"name" json:"name"`
	// Promise is the sentinel string the backend emits on completion.
	// Promises are unique within a parent.
	Promise string `yaml:"promise" json:"promise"`
	// Budget is the iteration budget drawn from the parent's remainder.
	Budget int `yaml:"budget" json:"budget"`
	// Skills lists agent skills inherited from or added to the parent.
	Skills []string `yaml:"skills,omitempty" json:"skills,omitempty"`
	// Status is the current state of the sub-phase.
	Status PhaseStatus `yaml:"status" json:"status"`
	// Order is the 1-based position within the parent.
	Order int `yaml:"order" json:"order"`
	// IterationsUsed is the number of iterations consumed so far.
	IterationsUsed int `yaml:"iterations_used,omitempty" json:"iterations_used,omitempty"`
	// Error contains the failure message if the sub-phase failed.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Phase is a unit of work with an iteration budget and one completion
// marker (its promise). Phases form a dependency DAG via DependsOn.
type Phase struct {
	// ID is the unique identifier for this phase (e.g. "01").
	ID string `yaml:"number" json:"number"`
	// Name is the short description of the phase.
	Name string `yaml:"name" json:"name"`
	// Promise is the sentinel string the backend emits on completion.
	Promise string `yaml:"promise" json:"promise"`
	// Budget is the maximum number of agent iterations for this phase,
	// including any sub-phases carved out of it.
	Budget int `yaml:"budget" json:"budget"`
	// DependsOn lists phase IDs that must complete before this phase.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	// Skills lists agent skills to load for this phase.
	Skills []string `yaml:"skills,omitempty" json:"skills,omitempty"`
	// PermissionMode controls what the agent may do during this phase.
	PermissionMode PermissionMode `yaml:"permission_mode,omitempty" json:"permission_mode,omitempty"`
	// SubPhases are child units in execution order. A sub-phase list is
	// owned exclusively by the phase while it executes.
	SubPhases []SubPhase `yaml:"sub_phases,omitempty" json:"sub_phases,omitempty"`
	// Type categorizes the phase for scheduling decisions.
	Type PhaseType `yaml:"type,omitempty" json:"type,omitempty"`
	// Review holds optional review settings.
	Review *ReviewConfig `yaml:"review,omitempty" json:"review,omitempty"`
}

// AllocatedBudget returns the total budget already allocated to sub-phases.
func (p *Phase) AllocatedBudget() int {
	total := 0
	for i := range p.SubPhases {
		total += p.SubPhases[i].Budget
	}
	return total
}

// RemainingBudget returns the parent budget not yet allocated to sub-phases.
// Never negative: an over-allocated phase reports zero.
func (p *Phase) RemainingBudget() int {
	remaining := p.Budget - p.AllocatedBudget()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubPhase returns the sub-phase with the given ID, or nil if not present.
func (p *Phase) SubPhase(id string) *SubPhase {
	for i := range p.SubPhases {
		if p.SubPhases[i].ID == id {
			return &p.SubPhases[i]
		}
	}
	return nil
}

// HasSubPhases returns true if the phase has been decomposed or has had
// sub-phases spawned inline.
func (p *Phase) HasSubPhases() bool {
	return len(p.SubPhases) > 0
}

// NextSubPhaseID returns the ID the next appended sub-phase would receive.
// Sub-phase IDs are dense and 1-based: "<parent>.1", "<parent>.2", ...
func (p *Phase) NextSubPhaseID() string {
	return SubPhaseID(p.ID, len(p.SubPhases)+1)
}

// SubPhaseID formats a sub-phase ID from a parent ID and a 1-based order.
func SubPhaseID(parentID string, order int) string {
	return fmt.Sprintf("%s.%d", parentID, order)
}
