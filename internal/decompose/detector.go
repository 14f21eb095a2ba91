// Package decompose detects when a phase has outgrown its budget and
// converts decomposition plans into sub-phases with task-level
// execution tracking.
package decompose

import (
	"fmt"
	"strings"

	"github.com/jdsingh122918/forge/pkg/models"
)

// blockerTriggerCount is the number of open blockers that by itself
// suggests the phase should be split.
const blockerTriggerCount = 3

// DetectorConfig controls trigger evaluation.
type DetectorConfig struct {
	// Enabled turns detection on. When false every check short-circuits
	// to no trigger (used for readonly phases, among others).
	Enabled bool
	// BudgetThresholdPercent is the share of the budget that must be
	// consumed before the budget trigger can fire.
	BudgetThresholdPercent int
	// ProgressThresholdPercent is the reported progress below which
	// consumed budget counts as a mismatch.
	ProgressThresholdPercent int
	// AllowExplicitRequest honors the agent's own decomposition request.
	AllowExplicitRequest bool
	// DetectComplexitySignals scans blocker descriptions for complexity
	// keywords.
	DetectComplexitySignals bool
	// ComplexityKeywords are matched case-insensitively against blocker
	// descriptions.
	ComplexityKeywords []string
}

// Trigger is the reason a decomposition should be attempted. A nil
// Trigger means no condition fired. Each variant carries the data that
// produced it.
type Trigger interface {
	// Reason returns a human-readable description of the trigger.
	Reason() string
}

// BudgetProgressMismatch fires when a large share of the budget is
// consumed while reported progress stays low: the phase scope was
// underestimated.
type BudgetProgressMismatch struct {
	// IterationsUsed is the number of iterations consumed.
	IterationsUsed int
	// Budget is the phase's iteration budget.
	Budget int
	// ProgressPercent is the agent's reported progress.
	ProgressPercent int
}

// Reason implements Trigger.
func (t BudgetProgressMismatch) Reason() string {
	return fmt.Sprintf("%d/%d iterations consumed with only %d%% progress reported",
		t.IterationsUsed, t.Budget, t.ProgressPercent)
}

// ComplexitySignal fires when a blocker description contains a
// complexity keyword.
type ComplexitySignal struct {
	// Message is the blocker description that matched.
	Message string
}

// Reason implements Trigger.
func (t ComplexitySignal) Reason() string {
	return fmt.Sprintf("complexity signal in blocker: %s", t.Message)
}

// ExplicitRequest fires when the agent itself asked for decomposition.
type ExplicitRequest struct{}

// Reason implements Trigger.
func (ExplicitRequest) Reason() string {
	return "agent explicitly requested decomposition"
}

// MultipleBlockers fires when several blockers are open at once.
type MultipleBlockers struct {
	// Count is the number of open (unacknowledged) blockers.
	Count int
}

// Reason implements Trigger.
func (t MultipleBlockers) Reason() string {
	return fmt.Sprintf("%d open blockers", t.Count)
}

// Detect evaluates the trigger conditions for a phase after an
// iteration. Pure: it reads the phase, the iteration count, and the
// backend's structured signals, and returns the first trigger that
// fires, or nil.
//
// Signal-based triggers take precedence over the budget heuristic — the
// agent's own assessment is a stronger signal. Among signals, first
// match wins: explicit request, then complexity keyword, then blocker
// count.
func Detect(phase *models.Phase, iterationsUsed int, signals models.IterationSignals, cfg DetectorConfig) Trigger {
	if !cfg.Enabled {
		return nil
	}

	if cfg.AllowExplicitRequest && signals.DecompositionRequest {
		return ExplicitRequest{}
	}

	if cfg.DetectComplexitySignals {
		for _, b := range signals.Blockers {
			if b.Acknowledged {
				continue
			}
			if matchesKeyword(b.Description, cfg.ComplexityKeywords) {
				return ComplexitySignal{Message: b.Description}
			}
		}
	}

	if open := signals.OpenBlockers(); open >= blockerTriggerCount {
		return MultipleBlockers{Count: open}
	}

	// Budget trigger: a significant share of the budget consumed while
	// the agent reports little progress. Requires a reported progress
	// value; an unknown estimate never fires the heuristic.
	if phase.Budget > 0 && signals.ProgressPercent >= 0 {
		threshold := phase.Budget * cfg.BudgetThresholdPercent / 100
		if iterationsUsed > threshold && signals.ProgressPercent < cfg.ProgressThresholdPercent {
			return BudgetProgressMismatch{
				IterationsUsed:  iterationsUsed,
				Budget:          phase.Budget,
				ProgressPercent: signals.ProgressPercent,
			}
		}
	}

	return nil
}

// matchesKeyword reports whether the description contains any keyword,
// case-insensitively.
func matchesKeyword(description string, keywords []string) bool {
	lower := strings.ToLower(description)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
