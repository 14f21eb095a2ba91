package backend

import (
	"context"
	"fmt"

	"github.com/jdsingh122918/forge/pkg/models"
)

// ScriptedResult is one pre-planned iteration outcome for a promise.
type ScriptedResult struct {
	// PromiseFound marks the iteration that completes the unit.
	PromiseFound bool
	// Signals are the structured signals reported for the iteration.
	Signals models.IterationSignals
	// PromptChars and OutputChars feed the context tracker.
	PromptChars int64
	OutputChars int64
	// Err makes the iteration fail at the backend level.
	Err error
}

// Scripted is a backend that replays pre-planned results, keyed by the
// requested promise. Used in tests and for dry runs.
type Scripted struct {
	results map[string][]ScriptedResult
	cursor  map[string]int
	plans   map[string]*models.DecompositionPlan
	// Calls records every request in order.
	Calls []IterationRequest
}

// NewScripted creates an empty scripted backend.
func NewScripted() *Scripted {
	return &Scripted{
		results: make(map[string][]ScriptedResult),
		cursor:  make(map[string]int),
	}
}

// Script appends planned results for a promise.
func (s *Scripted) Script(promise string, results ...ScriptedResult) {
	s.results[promise] = append(s.results[promise], results...)
}

// CompleteAfter scripts n-1 unproductive iterations followed by one
// that finds the promise.
func (s *Scripted) CompleteAfter(promise string, n int) {
	for i := 0; i < n-1; i++ {
		s.Script(promise, ScriptedResult{Signals: models.IterationSignals{ProgressPercent: -1}})
	}
	s.Script(promise, ScriptedResult{PromiseFound: true, Signals: models.IterationSignals{ProgressPercent: -1}})
}

// RunIteration replays the next scripted result for the request's
// promise. Once a script is exhausted, further iterations are
// unproductive.
func (s *Scripted) RunIteration(_ context.Context, req IterationRequest) (*models.IterationResult, error) {
	s.Calls = append(s.Calls, req)

	planned, ok := s.results[req.Promise]
	if !ok {
		return nil, fmt.Errorf("no script for promise %q", req.Promise)
	}

	i := s.cursor[req.Promise]
	if i >= len(planned) {
		return &models.IterationResult{
			PromptChars: int64(len(req.Prompt)),
			Signals:     models.IterationSignals{ProgressPercent: -1},
		}, nil
	}
	s.cursor[req.Promise] = i + 1

	r := planned[i]
	if r.Err != nil {
		return nil, r.Err
	}
	promptChars := r.PromptChars
	if promptChars == 0 {
		promptChars = int64(len(req.Prompt))
	}
	return &models.IterationResult{
		PromiseFound: r.PromiseFound,
		PromptChars:  promptChars,
		OutputChars:  r.OutputChars,
		Signals:      r.Signals,
	}, nil
}

var _ Backend = (*Scripted)(nil)
