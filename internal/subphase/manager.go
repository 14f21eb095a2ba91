// Package subphase validates and manages sub-phases carved from a
// parent phase's budget. Both sub-phase creation paths — decomposition
// plans and ad-hoc inline spawn requests — go through the single
// ValidateSpawn contract here.
package subphase

import (
	"fmt"

	"github.com/jdsingh122918/forge/pkg/models"
)

// Config holds sub-phase spawn policy.
type Config struct {
	// MaxSubPhases is the maximum number of sub-phases per parent.
	MaxSubPhases int
	// MinBudgetReserve is the number of iterations that must remain
	// unallocated in the parent after a spawn.
	MinBudgetReserve int
}

// SpawnRequest is a proposal for a new sub-phase.
type SpawnRequest struct {
	// Name is the short description of the sub-phase.
	Name string
	// Promise is the completion sentinel. Must be unique within the parent.
	Promise string
	// Budget is the requested iteration budget.
	Budget int
	// Skills lists agent skills for the sub-phase; empty inherits the
	// parent's skills.
	Skills []string
}

// SpawnValidation is the outcome of validating a spawn request.
// Reason is human-readable and suitable for direct display.
type SpawnValidation struct {
	// OK is true if the request may be appended to the parent.
	OK bool
	// Reason explains a rejection. Empty when OK.
	Reason string
}

// ValidateSpawn checks a spawn request against the parent's state and
// the configured policy. It never mutates the parent, so callers can
// log rejections without side effects.
func ValidateSpawn(req SpawnRequest, parent *models.Phase, cfg Config) SpawnValidation {
	if req.Name == "" {
		return SpawnValidation{Reason: "sub-phase name must not be empty"}
	}
	if req.Promise == "" {
		return SpawnValidation{Reason: "sub-phase promise must not be empty"}
	}
	if req.Budget <= 0 {
		return SpawnValidation{Reason: fmt.Sprintf("sub-phase budget must be positive, got %d", req.Budget)}
	}

	for i := range parent.SubPhases {
		if parent.SubPhases[i].Promise == req.Promise {
			return SpawnValidation{Reason: fmt.Sprintf(
				"promise %q already used by sub-phase %s", req.Promise, parent.SubPhases[i].ID)}
		}
	}

	if cfg.MaxSubPhases > 0 && len(parent.SubPhases) >= cfg.MaxSubPhases {
		return SpawnValidation{Reason: fmt.Sprintf(
			"phase %s already has %d sub-phases (max %d)", parent.ID, len(parent.SubPhases), cfg.MaxSubPhases)}
	}

	available := parent.RemainingBudget() - cfg.MinBudgetReserve
	if req.Budget > available {
		return SpawnValidation{Reason: fmt.Sprintf(
			"requested budget %d exceeds available %d (parent budget %d, allocated %d, reserve %d)",
			req.Budget, available, parent.Budget, parent.AllocatedBudget(), cfg.MinBudgetReserve)}
	}

	return SpawnValidation{OK: true}
}

// Manager appends and transitions sub-phases on a parent phase. The
// parent's sub-phase list is owned by whichever phase is currently
// executing, so the manager assumes single-writer access.
type Manager struct {
	cfg Config
}

// NewManager creates a Manager with the given spawn policy.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Spawn validates the request and, on success, appends a new Pending
// sub-phase to the parent with the next dense 1-based ID. On rejection
// the parent is left exactly as before and the reason is returned as an
// error.
func (m *Manager) Spawn(parent *models.Phase, req SpawnRequest) (*models.SubPhase, error) {
	if v := ValidateSpawn(req, parent, m.cfg); !v.OK {
		return nil, fmt.Errorf("spawn rejected: %s", v.Reason)
	}

	order := len(parent.SubPhases) + 1
	skills := req.Skills
	if len(skills) == 0 {
		skills = parent.Skills
	}

	parent.SubPhases = append(parent.SubPhases, models.SubPhase{
		ID:      models.SubPhaseID(parent.ID, order),
		Name:    req.Name,
		Promise: req.Promise,
		Budget:  req.Budget,
		Skills:  skills,
		Status:  models.StatusPending,
		Order:   order,
	})
	return &parent.SubPhases[len(parent.SubPhases)-1], nil
}

// Start transitions a Pending sub-phase to InProgress.
func (m *Manager) Start(parent *models.Phase, id string) error {
	sp, err := m.lookup(parent, id)
	if err != nil {
		return err
	}
	if sp.Status != models.StatusPending {
		return fmt.Errorf("sub-phase %s is %s, cannot start", id, sp.Status)
	}
	sp.Status = models.StatusInProgress
	return nil
}

// Complete transitions a sub-phase to Completed, recording the
// iterations it consumed. A no-op if already terminal.
func (m *Manager) Complete(parent *models.Phase, id string, iterationsUsed int) error {
	sp, err := m.lookup(parent, id)
	if err != nil {
		return err
	}
	if sp.Status.Terminal() {
		return nil
	}
	sp.Status = models.StatusCompleted
	sp.IterationsUsed = iterationsUsed
	return nil
}

// Fail transitions a sub-phase to Failed with the given reason.
// A no-op if already terminal.
func (m *Manager) Fail(parent *models.Phase, id string, reason string) error {
	sp, err := m.lookup(parent, id)
	if err != nil {
		return err
	}
	if sp.Status.Terminal() {
		return nil
	}
	sp.Status = models.StatusFailed
	sp.Error = reason
	return nil
}

// Skip transitions a sub-phase to Skipped. A no-op if already terminal.
func (m *Manager) Skip(parent *models.Phase, id string) error {
	sp, err := m.lookup(parent, id)
	if err != nil {
		return err
	}
	if sp.Status.Terminal() {
		return nil
	}
	sp.Status = models.StatusSkipped
	return nil
}

// lookup finds a sub-phase by ID.
func (m *Manager) lookup(parent *models.Phase, id string) (*models.SubPhase, error) {
	sp := parent.SubPhase(id)
	if sp == nil {
		return nil, fmt.Errorf("phase %s has no sub-phase %s", parent.ID, id)
	}
	return sp, nil
}

// AllComplete returns true if every sub-phase Completed. Vacuously true
// for a parent with no sub-phases.
func AllComplete(parent *models.Phase) bool {
	for i := range parent.SubPhases {
		if parent.SubPhases[i].Status != models.StatusCompleted {
			return false
		}
	}
	return true
}

// ParentCanComplete gates acceptance of the parent's promise: every
// sub-phase must be terminal and none failed.
func ParentCanComplete(parent *models.Phase) bool {
	for i := range parent.SubPhases {
		st := parent.SubPhases[i].Status
		if !st.Terminal() || st == models.StatusFailed {
			return false
		}
	}
	return true
}

// StatusSummary aggregates sub-phase progress for a parent.
type StatusSummary struct {
	// Counts is the number of sub-phases per status.
	Counts map[models.PhaseStatus]int
	// TotalAllocated is the budget allocated across all sub-phases.
	TotalAllocated int
	// CompletionPercent is the share of terminal sub-phases, 0-100.
	CompletionPercent float64
}

// Summarize computes a StatusSummary for the parent's sub-phases.
func Summarize(parent *models.Phase) StatusSummary {
	s := StatusSummary{Counts: make(map[models.PhaseStatus]int)}
	terminal := 0
	for i := range parent.SubPhases {
		sp := &parent.SubPhases[i]
		s.Counts[sp.Status]++
		s.TotalAllocated += sp.Budget
		if sp.Status.Terminal() {
			terminal++
		}
	}
	if n := len(parent.SubPhases); n > 0 {
		s.CompletionPercent = float64(terminal) / float64(n) * 100
	} else {
		s.CompletionPercent = 100
	}
	return s
}
