package models

// Blocker describes an obstacle the agent reported during an iteration.
type Blocker struct {
	// Description is the agent's description of the obstacle.
	Description string `json:"description"`
	// Acknowledged is true once the orchestrator has responded to the
	// blocker. Only unacknowledged blockers count toward decomposition.
	Acknowledged bool `json:"acknowledged"`
}

// IterationSignals carries the structured signals extracted from one
// agent iteration. The execution backend owns all raw-output parsing;
// this core consumes these fields verbatim.
type IterationSignals struct {
	// ProgressPercent is the agent's self-reported progress (0-100).
	// Negative means the agent reported no progress estimate.
	ProgressPercent int `json:"progress_percent"`
	// Blockers lists obstacles the agent reported.
	Blockers []Blocker `json:"blockers,omitempty"`
	// Pivot is set when the agent announced a change of approach.
	Pivot string `json:"pivot,omitempty"`
	// DecompositionRequest is true when the agent explicitly asked for
	// the phase to be split into smaller units.
	DecompositionRequest bool `json:"decomposition_request,omitempty"`
}

// IterationResult is the per-iteration contract with the execution
// backend.
type IterationResult struct {
	// PromiseFound is true if the phase's promise string appeared in
	// the agent output.
	PromiseFound bool `json:"promise_found"`
	// IterationsUsed is the cumulative iteration count for the phase.
	IterationsUsed int `json:"iterations_used"`
	// PromptChars is the size of the prompt sent this iteration.
	PromptChars int64 `json:"prompt_chars"`
	// OutputChars is the size of the agent output this iteration.
	OutputChars int64 `json:"output_chars"`
	// Signals holds the structured signals extracted from the output.
	Signals IterationSignals `json:"signals"`
}

// OpenBlockers returns the number of unacknowledged blockers.
func (s IterationSignals) OpenBlockers() int {
	n := 0
	for _, b := range s.Blockers {
		if !b.Acknowledged {
			n++
		}
	}
	return n
}
