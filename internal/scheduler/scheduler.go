package scheduler

import (
	"time"

	"github.com/jdsingh122918/forge/internal/graph"
	"github.com/jdsingh122918/forge/pkg/models"
)

// Scheduler tracks per-phase runtime state over a PhaseGraph and answers
// readiness queries.
//
// Scheduler is single-writer: the coordinating run loop applies results
// sequentially, so the mark methods assume exclusive access. Phases
// within a wave may execute concurrently, but their outcomes are fed
// back one at a time.
type Scheduler struct {
	// graph is the dependency graph of phases.
	graph *graph.PhaseGraph
	// states maps phase ID to its runtime state.
	states map[string]NodeState
	// failFast enables skip propagation to dependents on failure.
	failFast bool
	// maxParallel is the advisory concurrency cap reported to callers.
	// The scheduler reports eligibility only; it does not enforce this.
	maxParallel int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFailFast enables or disables skip propagation on failure.
func WithFailFast(on bool) Option {
	return func(s *Scheduler) { s.failFast = on }
}

// WithMaxParallel sets the advisory concurrency cap.
func WithMaxParallel(n int) Option {
	return func(s *Scheduler) { s.maxParallel = n }
}

// New creates a Scheduler over the given graph with every phase Pending.
func New(g *graph.PhaseGraph, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:       g,
		states:      make(map[string]NodeState, g.Size()),
		failFast:    true,
		maxParallel: 1,
	}
	for _, p := range g.Phases() {
		s.states[p.ID] = Pending{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the underlying phase graph.
func (s *Scheduler) Graph() *graph.PhaseGraph {
	return s.graph
}

// MaxParallel returns the advisory concurrency cap.
func (s *Scheduler) MaxParallel() int {
	return s.maxParallel
}

// State returns the runtime state for a phase, or nil if unknown.
func (s *Scheduler) State(id string) NodeState {
	return s.states[id]
}

// ComputeWaves returns the phases grouped into topological waves: each
// wave is the maximal set of phases whose dependencies are satisfied by
// the preceding waves. This is a pure planning query over a local
// completed-set; it never reads or mutates live runtime state.
func (s *Scheduler) ComputeWaves() [][]string {
	virtual := make(map[string]bool, s.graph.Size())
	var waves [][]string

	for len(virtual) < s.graph.Size() {
		var wave []string
		for _, p := range s.graph.Phases() {
			if virtual[p.ID] {
				continue
			}
			if s.graph.DependenciesSatisfied(p.ID, virtual) {
				wave = append(wave, p.ID)
			}
		}
		if len(wave) == 0 {
			// Unreachable on a validated graph; guards against loops
			// if the graph was constructed by hand.
			break
		}
		for _, id := range wave {
			virtual[id] = true
		}
		waves = append(waves, wave)
	}

	return waves
}

// ReadyPhases returns the phases that are Pending and whose dependencies
// are all Completed, in declared order.
func (s *Scheduler) ReadyPhases() []*models.Phase {
	completed := s.completedSet()

	var ready []*models.Phase
	for _, p := range s.graph.Phases() {
		if _, pending := s.states[p.ID].(Pending); !pending {
			continue
		}
		if s.graph.DependenciesSatisfied(p.ID, completed) {
			ready = append(ready, p)
		}
	}
	return ready
}

// completedSet returns the IDs of all Completed phases.
func (s *Scheduler) completedSet() map[string]bool {
	completed := make(map[string]bool, len(s.states))
	for id, st := range s.states {
		if _, ok := st.(Completed); ok {
			completed[id] = true
		}
	}
	return completed
}

// MarkRunning transitions a Pending phase to Running. Calls on phases in
// any other state are ignored.
func (s *Scheduler) MarkRunning(id string) {
	if _, pending := s.states[id].(Pending); pending {
		s.states[id] = Running{StartedAt: time.Now()}
	}
}

// MarkCompleted transitions a non-terminal phase to Completed with the
// number of iterations it consumed. Unknown IDs are ignored.
func (s *Scheduler) MarkCompleted(id string, iterations int) {
	if !s.known(id) || s.terminal(id) {
		return
	}
	s.states[id] = Completed{Iterations: iterations}
}

// MarkFailed transitions a non-terminal phase to Failed. Under fail-fast
// every non-terminal transitive dependent is marked Skipped. Unknown IDs
// are ignored.
func (s *Scheduler) MarkFailed(id string, err error) {
	if !s.known(id) || s.terminal(id) {
		return
	}
	s.states[id] = Failed{Err: err}

	if s.failFast {
		s.skipDependents(id)
	}
}

// MarkSkipped transitions a non-terminal phase to Skipped and cascades
// to its dependents. A no-op on terminal phases, which also keeps the
// cascade from revisiting nodes on diamond-shaped graphs. Unknown IDs
// are ignored.
func (s *Scheduler) MarkSkipped(id string) {
	if !s.known(id) || s.terminal(id) {
		return
	}
	s.states[id] = Skipped{}
	s.skipDependents(id)
}

// skipDependents walks forward edges from the given phase and marks
// every non-terminal dependent Skipped. Implemented as an explicit
// worklist so stack depth stays bounded on large graphs; terminal nodes
// are never revisited, which makes the walk idempotent.
func (s *Scheduler) skipDependents(id string) {
	work := append([]string(nil), s.graph.Dependents(id)...)
	for len(work) > 0 {
		next := work[0]
		work = work[1:]

		if s.terminal(next) {
			continue
		}
		s.states[next] = Skipped{}
		work = append(work, s.graph.Dependents(next)...)
	}
}

// known returns true if the ID belongs to a phase in the graph.
func (s *Scheduler) known(id string) bool {
	_, ok := s.states[id]
	return ok
}

// terminal returns true if the phase is in a terminal state.
func (s *Scheduler) terminal(id string) bool {
	st, ok := s.states[id]
	if !ok {
		return false
	}
	return st.Status().Terminal()
}

// AllComplete returns true once every phase is in a terminal state.
func (s *Scheduler) AllComplete() bool {
	for id := range s.states {
		if !s.terminal(id) {
			return false
		}
	}
	return true
}

// AllSuccess returns true if every phase Completed successfully.
func (s *Scheduler) AllSuccess() bool {
	for _, st := range s.states {
		if _, ok := st.(Completed); !ok {
			return false
		}
	}
	return true
}

// CompletionPercentage returns the share of phases in a terminal state,
// 0-100. An empty graph reports 100.
func (s *Scheduler) CompletionPercentage() float64 {
	if len(s.states) == 0 {
		return 100
	}
	terminal := 0
	for id := range s.states {
		if s.terminal(id) {
			terminal++
		}
	}
	return float64(terminal) / float64(len(s.states)) * 100
}

// StatusCounts returns the number of phases in each status.
func (s *Scheduler) StatusCounts() map[models.PhaseStatus]int {
	counts := make(map[models.PhaseStatus]int)
	for _, st := range s.states {
		counts[st.Status()]++
	}
	return counts
}
