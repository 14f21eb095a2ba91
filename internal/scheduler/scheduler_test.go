package scheduler

import (
	"errors"
	"testing"

	"github.com/jdsingh122918/forge/internal/graph"
	"github.com/jdsingh122918/forge/pkg/models"
)

func phase(id string, deps ...string) *models.Phase {
	return &models.Phase{ID: id, Name: "Phase " + id, Promise: "PHASE " + id + " COMPLETE", Budget: 10, DependsOn: deps}
}

func mustBuild(t *testing.T, phases ...*models.Phase) *graph.PhaseGraph {
	t.Helper()
	g, err := graph.Build(phases)
	if err != nil {
		t.Fatalf("unexpected graph error: %v", err)
	}
	return g
}

func TestComputeWavesDiamond(t *testing.T) {
	// 01 -> {02, 03} -> 04
	g := mustBuild(t,
		phase("01"),
		phase("02", "01"),
		phase("03", "01"),
		phase("04", "02", "03"),
	)
	s := New(g)

	waves := s.ComputeWaves()
	want := [][]string{{"01"}, {"02", "03"}, {"04"}}
	if len(waves) != len(want) {
		t.Fatalf("expected %d waves, got %d: %v", len(want), len(waves), waves)
	}
	for i := range want {
		if len(waves[i]) != len(want[i]) {
			t.Fatalf("wave %d: expected %v, got %v", i, want[i], waves[i])
		}
		for j := range want[i] {
			if waves[i][j] != want[i][j] {
				t.Errorf("wave %d: expected %v, got %v", i, want[i], waves[i])
			}
		}
	}
}

func TestComputeWavesIsTopologicalOrder(t *testing.T) {
	g := mustBuild(t,
		phase("01"),
		phase("02"),
		phase("03", "01"),
		phase("04", "01", "02"),
		phase("05", "03", "04"),
		phase("06", "02"),
	)
	s := New(g)

	// The concatenation of waves must place every phase after all of
	// its dependencies.
	position := make(map[string]int)
	i := 0
	for _, wave := range s.ComputeWaves() {
		for _, id := range wave {
			position[id] = i
			i++
		}
	}

	if i != g.Size() {
		t.Fatalf("expected all %d phases in waves, got %d", g.Size(), i)
	}
	for _, p := range g.Phases() {
		for _, dep := range p.DependsOn {
			if position[dep] >= position[p.ID] {
				t.Errorf("phase %s scheduled before its dependency %s", p.ID, dep)
			}
		}
	}
}

func TestComputeWavesDoesNotTouchLiveState(t *testing.T) {
	g := mustBuild(t, phase("01"), phase("02", "01"))
	s := New(g)

	s.ComputeWaves()

	// Wave planning must leave every phase Pending.
	for _, p := range g.Phases() {
		if _, ok := s.State(p.ID).(Pending); !ok {
			t.Errorf("phase %s state mutated by ComputeWaves: %v", p.ID, s.State(p.ID))
		}
	}
	if len(s.ReadyPhases()) != 1 {
		t.Error("live readiness changed after ComputeWaves")
	}
}

func TestReadyPhasesFollowsCompletion(t *testing.T) {
	g := mustBuild(t, phase("01"), phase("02", "01"), phase("03", "02"))
	s := New(g)

	ready := s.ReadyPhases()
	if len(ready) != 1 || ready[0].ID != "01" {
		t.Fatalf("expected only 01 ready, got %v", ready)
	}

	s.MarkRunning("01")
	if len(s.ReadyPhases()) != 0 {
		t.Error("a running phase must not be reported ready")
	}

	s.MarkCompleted("01", 4)
	ready = s.ReadyPhases()
	if len(ready) != 1 || ready[0].ID != "02" {
		t.Errorf("expected only 02 ready after 01 completes, got %v", ready)
	}
}

func TestMarkFailedFailFastSkipsTransitiveDependents(t *testing.T) {
	// Linear 01 -> 02 -> 03 with fail-fast on.
	g := mustBuild(t, phase("01"), phase("02", "01"), phase("03", "02"))
	s := New(g, WithFailFast(true))

	s.MarkRunning("01")
	s.MarkFailed("01", errors.New("boom"))

	if st, ok := s.State("01").(Failed); !ok || st.Err.Error() != "boom" {
		t.Errorf("expected 01 Failed(boom), got %v", s.State("01"))
	}
	for _, id := range []string{"02", "03"} {
		if _, ok := s.State(id).(Skipped); !ok {
			t.Errorf("expected %s Skipped, got %v", id, s.State(id))
		}
	}
}

func TestMarkFailedWithoutFailFastLeavesDependentsPending(t *testing.T) {
	g := mustBuild(t, phase("01"), phase("02", "01"))
	s := New(g, WithFailFast(false))

	s.MarkFailed("01", errors.New("boom"))

	if _, ok := s.State("02").(Pending); !ok {
		t.Errorf("expected 02 to stay Pending without fail-fast, got %v", s.State("02"))
	}
	// Blocked forever, but never reported ready.
	if len(s.ReadyPhases()) != 0 {
		t.Error("dependent of a failed phase must not become ready")
	}
}

func TestSkipPropagationDiamondIsIdempotent(t *testing.T) {
	// Diamond: both 02 and 03 feed 04; the cascade reaches 04 twice.
	g := mustBuild(t,
		phase("01"),
		phase("02", "01"),
		phase("03", "01"),
		phase("04", "02", "03"),
	)
	s := New(g, WithFailFast(true))

	s.MarkFailed("01", errors.New("boom"))

	for _, id := range []string{"02", "03", "04"} {
		if _, ok := s.State(id).(Skipped); !ok {
			t.Errorf("expected %s Skipped, got %v", id, s.State(id))
		}
	}
}

func TestMarkSkippedOnTerminalIsNoOp(t *testing.T) {
	g := mustBuild(t, phase("01"), phase("02", "01"))
	s := New(g)

	s.MarkCompleted("01", 3)
	s.MarkSkipped("01")

	st, ok := s.State("01").(Completed)
	if !ok {
		t.Fatalf("expected 01 to remain Completed, got %v", s.State("01"))
	}
	if st.Iterations != 3 {
		t.Errorf("expected iteration count preserved, got %d", st.Iterations)
	}
	// 02's readiness must be unaffected by the no-op.
	if ready := s.ReadyPhases(); len(ready) != 1 || ready[0].ID != "02" {
		t.Errorf("expected 02 ready, got %v", ready)
	}
}

func TestMarkFailedOnTerminalIsNoOp(t *testing.T) {
	g := mustBuild(t, phase("01"))
	s := New(g)

	s.MarkCompleted("01", 2)
	s.MarkFailed("01", errors.New("late failure"))

	if _, ok := s.State("01").(Completed); !ok {
		t.Errorf("expected terminal phase untouched, got %v", s.State("01"))
	}
}

func TestMarkUnknownIDIgnored(t *testing.T) {
	g := mustBuild(t, phase("01"))
	s := New(g)

	s.MarkCompleted("99", 1)
	s.MarkFailed("98", errors.New("boom"))
	s.MarkSkipped("97")

	if s.State("99") != nil {
		t.Error("unknown ID must not gain a state entry")
	}
	if s.AllComplete() {
		t.Error("unknown IDs must not count toward completion")
	}
	counts := s.StatusCounts()
	if counts[models.StatusCompleted] != 0 || counts[models.StatusFailed] != 0 || counts[models.StatusSkipped] != 0 {
		t.Errorf("unknown IDs must not perturb counts: %v", counts)
	}
}

func TestAggregates(t *testing.T) {
	g := mustBuild(t, phase("01"), phase("02"), phase("03", "01"))
	s := New(g, WithFailFast(true))

	if s.AllComplete() {
		t.Error("AllComplete should be false at start")
	}
	if s.CompletionPercentage() != 0 {
		t.Errorf("expected 0%%, got %f", s.CompletionPercentage())
	}

	s.MarkCompleted("01", 1)
	s.MarkCompleted("03", 1)

	if got := s.CompletionPercentage(); got < 66 || got > 67 {
		t.Errorf("expected ~66.7%%, got %f", got)
	}
	if s.AllComplete() {
		t.Error("AllComplete should be false with 02 pending")
	}

	s.MarkFailed("02", errors.New("boom"))

	if !s.AllComplete() {
		t.Error("AllComplete should be true once every phase is terminal")
	}
	if s.AllSuccess() {
		t.Error("AllSuccess should be false with a failed phase")
	}
	if s.CompletionPercentage() != 100 {
		t.Errorf("expected 100%%, got %f", s.CompletionPercentage())
	}

	counts := s.StatusCounts()
	if counts[models.StatusCompleted] != 2 || counts[models.StatusFailed] != 1 {
		t.Errorf("unexpected status counts: %v", counts)
	}
}

func TestAllSuccess(t *testing.T) {
	g := mustBuild(t, phase("01"), phase("02", "01"))
	s := New(g)

	s.MarkCompleted("01", 1)
	s.MarkCompleted("02", 1)

	if !s.AllSuccess() {
		t.Error("expected AllSuccess once every phase completed")
	}
}
