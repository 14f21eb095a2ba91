package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventPhaseStarted indicates a phase has started execution.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseIteration reports one completed agent iteration.
	EventPhaseIteration EventType = "phase_iteration"
	// EventPhaseCompleted indicates a phase completed successfully.
	EventPhaseCompleted EventType = "phase_completed"
	// EventPhaseFailed indicates a phase failed.
	EventPhaseFailed EventType = "phase_failed"
	// EventPhaseSkipped indicates a phase was skipped after a dependency failed.
	EventPhaseSkipped EventType = "phase_skipped"
	// EventPhaseDecomposed indicates a phase was split into sub-phases.
	EventPhaseDecomposed EventType = "phase_decomposed"
	// EventSubPhaseStarted indicates a sub-phase has started execution.
	EventSubPhaseStarted EventType = "subphase_started"
	// EventSubPhaseCompleted indicates a sub-phase completed.
	EventSubPhaseCompleted EventType = "subphase_completed"
	// EventSubPhaseFailed indicates a sub-phase failed.
	EventSubPhaseFailed EventType = "subphase_failed"
	// EventCompaction indicates the phase context was compacted.
	EventCompaction EventType = "compaction"
	// EventRunDone indicates the entire run is complete.
	EventRunDone EventType = "run_done"
)

// Event represents an event emitted by the orchestrator. Events carry
// everything a consumer needs to render run progress without reaching
// back into orchestrator state.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the ID of the run this event belongs to.
	RunID string
	// PhaseID is the ID of the related phase or sub-phase, if applicable.
	PhaseID string
	// PhaseName is the display name of the related phase, if applicable.
	PhaseName string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Iteration is the iteration count at the time of the event.
	Iteration int
	// Budget is the iteration budget of the related unit.
	Budget int
	// ContextUsed is the cumulative context size in characters.
	ContextUsed int64
}

// emit sends an event to the configured channel without blocking the
// run loop. A full or absent channel drops the event; the state store
// remains the durable record.
func (o *Orchestrator) emit(e Event) {
	e.RunID = o.runID
	e.Timestamp = time.Now()
	if o.events == nil {
		return
	}
	select {
	case o.events <- e:
	default:
	}
}
