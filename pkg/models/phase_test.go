package models

import "testing"

func TestPhaseStatusValid(t *testing.T) {
	valid := []PhaseStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if PhaseStatus("done").Valid() {
		t.Error("expected unknown status to be invalid")
	}
	if PhaseStatus("").Valid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestPhaseStatusTerminal(t *testing.T) {
	terminal := []PhaseStatus{StatusCompleted, StatusFailed, StatusSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}

	nonTerminal := []PhaseStatus{StatusPending, StatusInProgress}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}

func TestPhaseAllocatedBudget(t *testing.T) {
	p := &Phase{
		ID:     "01",
		Budget: 20,
		SubPhases: []SubPhase{
			{ID: "01.1", Budget: 5},
			{ID: "01.2", Budget: 7},
		},
	}

	if got := p.AllocatedBudget(); got != 12 {
		t.Errorf("expected allocated budget 12, got %d", got)
	}
	if got := p.RemainingBudget(); got != 8 {
		t.Errorf("expected remaining budget 8, got %d", got)
	}
}

func TestPhaseRemainingBudgetNeverNegative(t *testing.T) {
	p := &Phase{
		ID:     "01",
		Budget: 5,
		SubPhases: []SubPhase{
			{ID: "01.1", Budget: 10},
		},
	}

	if got := p.RemainingBudget(); got != 0 {
		t.Errorf("expected remaining budget 0 for over-allocated phase, got %d", got)
	}
}

func TestPhaseSubPhaseLookup(t *testing.T) {
	p := &Phase{
		ID: "02",
		SubPhases: []SubPhase{
			{ID: "02.1", Name: "first"},
			{ID: "02.2", Name: "second"},
		},
	}

	sp := p.SubPhase("02.2")
	if sp == nil {
		t.Fatal("expected sub-phase, got nil")
	}
	if sp.Name != "second" {
		t.Errorf("expected name %q, got %q", "second", sp.Name)
	}

	if p.SubPhase("02.9") != nil {
		t.Error("expected nil for unknown sub-phase ID")
	}
}

func TestPhaseNextSubPhaseID(t *testing.T) {
	p := &Phase{ID: "03"}
	if got := p.NextSubPhaseID(); got != "03.1" {
		t.Errorf("expected 03.1, got %s", got)
	}

	p.SubPhases = append(p.SubPhases, SubPhase{ID: "03.1", Order: 1})
	if got := p.NextSubPhaseID(); got != "03.2" {
		t.Errorf("expected 03.2, got %s", got)
	}
}

func TestIterationSignalsOpenBlockers(t *testing.T) {
	s := IterationSignals{
		Blockers: []Blocker{
			{Description: "missing schema", Acknowledged: false},
			{Description: "flaky test", Acknowledged: true},
			{Description: "unclear requirement", Acknowledged: false},
		},
	}

	if got := s.OpenBlockers(); got != 2 {
		t.Errorf("expected 2 open blockers, got %d", got)
	}
}

func TestDecompositionPlanTotalBudget(t *testing.T) {
	plan := &DecompositionPlan{
		Tasks: []PlanTask{
			{ID: "a", Budget: 3},
			{ID: "b", Budget: 4},
			{ID: "c", Budget: 5},
		},
	}

	if got := plan.TotalBudget(); got != 12 {
		t.Errorf("expected total budget 12, got %d", got)
	}
}
