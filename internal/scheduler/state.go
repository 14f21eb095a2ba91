// Package scheduler computes topological waves over the phase graph and
// tracks per-phase runtime state during a run.
package scheduler

import (
	"time"

	"github.com/jdsingh122918/forge/pkg/models"
)

// NodeState is the runtime state of a phase node. Each variant carries
// the data that only exists in that state, so invalid combinations
// (a pending phase with an error, a failed phase with a start time)
// cannot be represented.
type NodeState interface {
	// Status returns the coarse status value for this state.
	Status() models.PhaseStatus
}

// Pending indicates the phase has not started.
type Pending struct{}

// Running indicates the phase is executing.
type Running struct {
	// StartedAt is when execution began.
	StartedAt time.Time
}

// Completed indicates the phase finished successfully.
type Completed struct {
	// Iterations is the number of iterations the phase consumed.
	Iterations int
}

// Failed indicates the phase failed.
type Failed struct {
	// Err is the failure reported by the execution backend.
	Err error
}

// Skipped indicates the phase was skipped because a dependency failed.
type Skipped struct{}

// Status implements NodeState.
func (Pending) Status() models.PhaseStatus { return models.StatusPending }

// Status implements NodeState.
func (Running) Status() models.PhaseStatus { return models.StatusInProgress }

// Status implements NodeState.
func (Completed) Status() models.PhaseStatus { return models.StatusCompleted }

// Status implements NodeState.
func (Failed) Status() models.PhaseStatus { return models.StatusFailed }

// Status implements NodeState.
func (Skipped) Status() models.PhaseStatus { return models.StatusSkipped }
