package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jdsingh122918/forge/internal/backend"
	"github.com/jdsingh122918/forge/internal/config"
	"github.com/jdsingh122918/forge/internal/state"
	"github.com/jdsingh122918/forge/pkg/models"
)

func diamondPlan() []models.Phase {
	return []models.Phase{
		{ID: "a", Name: "base", Promise: "PHASE A COMPLETE", Budget: 3},
		{ID: "b", Name: "left", Promise: "PHASE B COMPLETE", Budget: 3, DependsOn: []string{"a"}},
		{ID: "c", Name: "right", Promise: "PHASE C COMPLETE", Budget: 3, DependsOn: []string{"a"}},
		{ID: "d", Name: "join", Promise: "PHASE D COMPLETE", Budget: 3, DependsOn: []string{"b", "c"}},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Context.ModelWindowChars = 1_000_000
	return cfg
}

func TestRunCompletesDiamond(t *testing.T) {
	b := backend.NewScripted()
	b.CompleteAfter("PHASE A COMPLETE", 2)
	b.CompleteAfter("PHASE B COMPLETE", 1)
	b.CompleteAfter("PHASE C COMPLETE", 1)
	b.CompleteAfter("PHASE D COMPLETE", 1)

	o, err := New(diamondPlan(), Options{Backend: b, Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !report.Success {
		t.Fatalf("expected success, counts %v", report.Counts)
	}
	if report.Counts[models.StatusCompleted] != 4 {
		t.Errorf("expected 4 completed phases, got %v", report.Counts)
	}
	if report.Iterations["a"] != 2 {
		t.Errorf("expected phase a to take 2 iterations, got %d", report.Iterations["a"])
	}

	// a runs before b and c, d runs last.
	first := b.Calls[0].Promise
	last := b.Calls[len(b.Calls)-1].Promise
	if first != "PHASE A COMPLETE" {
		t.Errorf("expected a first, got %s", first)
	}
	if last != "PHASE D COMPLETE" {
		t.Errorf("expected d last, got %s", last)
	}
}

func TestRunFailFastSkipsDependents(t *testing.T) {
	b := backend.NewScripted()
	b.CompleteAfter("PHASE A COMPLETE", 1)
	// b never emits its promise: 3 unproductive iterations exhaust it.
	b.Script("PHASE B COMPLETE", backend.ScriptedResult{Signals: models.IterationSignals{ProgressPercent: -1}})
	b.CompleteAfter("PHASE C COMPLETE", 1)
	b.CompleteAfter("PHASE D COMPLETE", 1)

	o, err := New(diamondPlan(), Options{Backend: b, Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Success {
		t.Error("expected failure")
	}
	if report.Counts[models.StatusFailed] != 1 || report.Counts[models.StatusSkipped] != 1 {
		t.Errorf("expected 1 failed and 1 skipped, got %v", report.Counts)
	}
	if report.Counts[models.StatusCompleted] != 2 {
		t.Errorf("expected a and c completed, got %v", report.Counts)
	}
	if report.Iterations["b"] != 3 {
		t.Errorf("expected b to exhaust its 3-iteration budget, got %d", report.Iterations["b"])
	}

	// d must never have been attempted.
	for _, call := range b.Calls {
		if call.Promise == "PHASE D COMPLETE" {
			t.Error("skipped phase d must not reach the backend")
		}
	}
}

func TestRunWithoutFailFastLeavesDependentsPending(t *testing.T) {
	cfg := testConfig()
	cfg.Orchestrator.FailFast = false

	b := backend.NewScripted()
	b.CompleteAfter("PHASE A COMPLETE", 1)
	b.Script("PHASE B COMPLETE", backend.ScriptedResult{Signals: models.IterationSignals{ProgressPercent: -1}})
	b.CompleteAfter("PHASE C COMPLETE", 1)
	b.CompleteAfter("PHASE D COMPLETE", 1)

	o, err := New(diamondPlan(), Options{Backend: b, Config: cfg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Counts[models.StatusPending] != 1 {
		t.Errorf("expected d left pending without fail-fast, got %v", report.Counts)
	}
	if report.Counts[models.StatusSkipped] != 0 {
		t.Errorf("expected no skips without fail-fast, got %v", report.Counts)
	}
}

func TestRunDecomposesOnExplicitRequest(t *testing.T) {
	phases := []models.Phase{
		{ID: "01", Name: "big phase", Promise: "PHASE 01 COMPLETE", Budget: 20, Skills: []string{"go"}},
	}

	b := backend.NewScripted()
	// First iteration asks for decomposition.
	b.Script("PHASE 01 COMPLETE", backend.ScriptedResult{
		Signals: models.IterationSignals{ProgressPercent: 5, DecompositionRequest: true},
	})
	b.ScriptPlan("01", &models.DecompositionPlan{
		Tasks: []models.PlanTask{
			{ID: "schema", Name: "Define schema", Budget: 3},
			{ID: "store", Name: "Implement store", Budget: 3, DependsOn: []string{"schema"}},
		},
	})
	b.CompleteAfter("PHASE 01 COMPLETE SUBTASK 1 COMPLETE", 2)
	b.CompleteAfter("PHASE 01 COMPLETE SUBTASK 2 COMPLETE", 1)

	o, err := New(phases, Options{Backend: b, Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !report.Success {
		t.Fatalf("expected success, counts %v", report.Counts)
	}
	// 1 parent iteration + 2 + 1 sub-phase iterations.
	if report.Iterations["01"] != 4 {
		t.Errorf("expected 4 total iterations, got %d", report.Iterations["01"])
	}
}

func TestRunFailsParentWhenSubPhaseFails(t *testing.T) {
	phases := []models.Phase{
		{ID: "01", Name: "big phase", Promise: "PHASE 01 COMPLETE", Budget: 20},
	}

	b := backend.NewScripted()
	b.Script("PHASE 01 COMPLETE", backend.ScriptedResult{
		Signals: models.IterationSignals{DecompositionRequest: true},
	})
	b.ScriptPlan("01", &models.DecompositionPlan{
		Tasks: []models.PlanTask{
			{ID: "first", Name: "first part", Budget: 2},
			{ID: "second", Name: "second part", Budget: 2, DependsOn: []string{"first"}},
		},
	})
	// First sub-phase exhausts its budget without the promise.
	b.Script("PHASE 01 COMPLETE SUBTASK 1 COMPLETE",
		backend.ScriptedResult{Signals: models.IterationSignals{ProgressPercent: -1}})
	b.CompleteAfter("PHASE 01 COMPLETE SUBTASK 2 COMPLETE", 1)

	o, err := New(phases, Options{Backend: b, Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Success {
		t.Error("expected failure when a sub-phase fails")
	}
	if report.Counts[models.StatusFailed] != 1 {
		t.Errorf("expected the parent failed, got %v", report.Counts)
	}

	// The dependent sub-phase must never reach the backend.
	for _, call := range b.Calls {
		if call.Promise == "PHASE 01 COMPLETE SUBTASK 2 COMPLETE" {
			t.Error("skipped sub-phase must not reach the backend")
		}
	}
}

func TestRunRecordsStateHistory(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open state: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	b := backend.NewScripted()
	b.CompleteAfter("PHASE A COMPLETE", 1)
	b.CompleteAfter("PHASE B COMPLETE", 1)
	b.CompleteAfter("PHASE C COMPLETE", 1)
	b.CompleteAfter("PHASE D COMPLETE", 1)

	o, err := New(diamondPlan(), Options{
		Backend: b, Config: testConfig(), Store: db, PlanName: "diamond", PlanPath: "plan.yaml",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	run, err := db.GetRun(report.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run == nil || run.Status != state.RunCompleted {
		t.Fatalf("expected completed run record, got %+v", run)
	}

	statuses, err := db.LatestPhaseStatuses(report.RunID)
	if err != nil {
		t.Fatalf("latest statuses: %v", err)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if statuses[id] != models.StatusCompleted {
			t.Errorf("expected %s recorded completed, got %s", id, statuses[id])
		}
	}
}

func TestRunEmitsEvents(t *testing.T) {
	events := make(chan Event, 128)

	b := backend.NewScripted()
	b.CompleteAfter("PHASE A COMPLETE", 1)
	b.CompleteAfter("PHASE B COMPLETE", 1)
	b.CompleteAfter("PHASE C COMPLETE", 1)
	b.CompleteAfter("PHASE D COMPLETE", 1)

	o, err := New(diamondPlan(), Options{Backend: b, Config: testConfig(), Events: events})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	close(events)

	counts := make(map[EventType]int)
	for e := range events {
		counts[e.Type]++
	}
	if counts[EventPhaseStarted] != 4 || counts[EventPhaseCompleted] != 4 {
		t.Errorf("expected 4 started and 4 completed events, got %v", counts)
	}
	if counts[EventRunDone] != 1 {
		t.Errorf("expected one run_done event, got %v", counts)
	}
}

func TestRunStopAborts(t *testing.T) {
	b := backend.NewScripted()
	b.CompleteAfter("PHASE A COMPLETE", 1)

	o, err := New(diamondPlan(), Options{Backend: b, Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Stop()

	if _, err := o.Run(context.Background()); err == nil {
		t.Error("expected an error from a stopped run")
	}
}

func TestRunCanceledContext(t *testing.T) {
	b := backend.NewScripted()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := New(diamondPlan(), Options{Backend: b, Config: testConfig()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(ctx); err == nil {
		t.Error("expected context cancellation to abort the run")
	}
}

func TestBuildPromptIncludesContract(t *testing.T) {
	p := buildPrompt(promptInput{
		name: "Build core", promise: "PHASE 01 COMPLETE", budget: 5, iteration: 2,
		history:  []string{"- iteration 1: progress 20%"},
		blockers: []models.Blocker{{Description: "schema undefined", Acknowledged: true}},
	})

	for _, want := range []string{"PHASE 01 COMPLETE", "iteration 2 of at most 5", "schema undefined", "progress 20%"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
