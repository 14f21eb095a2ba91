package contexttrack

import "testing"

func testConfig() Config {
	return Config{
		LimitPercent:        80,
		ModelWindowChars:    100_000,
		SafetyMarginPercent: 10,
		MinPreservedContext: 5_000,
	}
}

func TestEffectiveLimitPercent(t *testing.T) {
	tr := New(testConfig())
	if got := tr.EffectiveLimit(); got != 80_000 {
		t.Errorf("expected effective limit 80000, got %d", got)
	}
}

func TestEffectiveLimitAbsoluteWins(t *testing.T) {
	cfg := testConfig()
	cfg.LimitChars = 50_000
	tr := New(cfg)
	if got := tr.EffectiveLimit(); got != 50_000 {
		t.Errorf("expected absolute limit 50000 to win, got %d", got)
	}
}

func TestEffectiveLimitDefaultsToWindow(t *testing.T) {
	tr := New(Config{ModelWindowChars: 200_000})
	if got := tr.EffectiveLimit(); got != 200_000 {
		t.Errorf("expected full window as limit, got %d", got)
	}
}

func TestCompactionThreshold(t *testing.T) {
	tr := New(testConfig())
	if got := tr.CompactionThreshold(); got != 72_000 {
		t.Errorf("expected threshold 72000, got %d", got)
	}
}

func TestShouldCompactRequiresTwoIterations(t *testing.T) {
	tr := New(testConfig())

	// One enormous iteration alone never triggers compaction.
	tr.RecordIteration(90_000, 5_000)
	if tr.ShouldCompact() {
		t.Error("should not compact with a single iteration, regardless of volume")
	}

	tr.RecordIteration(1, 1)
	if !tr.ShouldCompact() {
		t.Error("should compact with two iterations over the threshold")
	}
}

func TestShouldCompactBelowThreshold(t *testing.T) {
	tr := New(testConfig())
	tr.RecordIteration(30_000, 10_000)
	tr.RecordIteration(20_000, 1_000)

	if tr.ShouldCompact() {
		t.Errorf("should not compact at %d chars (threshold %d)", tr.TotalContextUsed(), tr.CompactionThreshold())
	}
}

func TestCompactionScenario(t *testing.T) {
	// Window 100000, limit 80% -> 80000 effective, margin 10% -> 72000.
	tr := New(testConfig())

	tr.RecordIteration(40_000, 10_000)
	tr.RecordIteration(20_000, 3_000)

	if tr.TotalContextUsed() != 73_000 {
		t.Fatalf("expected 73000 chars used, got %d", tr.TotalContextUsed())
	}
	if !tr.ShouldCompact() {
		t.Fatal("expected ShouldCompact at 73000 >= 72000")
	}

	tr.ApplyCompaction(10_000, 2)

	if got := tr.TotalContextUsed(); got != 10_000 {
		t.Errorf("expected 10000 chars after compaction, got %d", got)
	}
	if got := tr.CharsSaved(); got != 63_000 {
		t.Errorf("expected 63000 chars saved, got %d", got)
	}
	if got := tr.IterationCount(); got != 1 {
		t.Errorf("expected iteration count floored at 1, got %d", got)
	}
	if !tr.CompactionPerformed() {
		t.Error("expected compaction flag set")
	}
}

func TestApplyCompactionFloorsIterationCount(t *testing.T) {
	tr := New(testConfig())
	tr.RecordIteration(10_000, 0)
	tr.RecordIteration(10_000, 0)
	tr.RecordIteration(10_000, 0)

	tr.ApplyCompaction(1_000, 10)

	if got := tr.IterationCount(); got != 1 {
		t.Errorf("expected iteration count 1, got %d", got)
	}
}

func TestApplyCompactionDecrementsNotZeroes(t *testing.T) {
	tr := New(testConfig())
	for i := 0; i < 5; i++ {
		tr.RecordIteration(10_000, 0)
	}

	tr.ApplyCompaction(2_000, 3)

	if got := tr.IterationCount(); got != 2 {
		t.Errorf("expected iteration count 5-3=2, got %d", got)
	}
}

func TestCharsSavedAccumulates(t *testing.T) {
	tr := New(testConfig())
	tr.RecordIteration(40_000, 0)
	tr.RecordIteration(33_000, 0)
	tr.ApplyCompaction(10_000, 2)

	tr.RecordIteration(30_000, 35_000)
	tr.ApplyCompaction(5_000, 1)

	// 63000 from the first compaction, 70000 from the second.
	if got := tr.CharsSaved(); got != 133_000 {
		t.Errorf("expected 133000 chars saved, got %d", got)
	}
}

func TestHasBudgetFor(t *testing.T) {
	tr := New(testConfig())
	tr.RecordIteration(50_000, 0)

	// Remaining: 30000. Must strictly exceed estimate + 5000 preserved.
	if !tr.HasBudgetFor(20_000) {
		t.Error("expected budget for 20000 (30000 > 25000)")
	}
	if tr.HasBudgetFor(25_000) {
		t.Error("expected no budget for 25000 (30000 is not > 30000)")
	}
	if tr.HasBudgetFor(26_000) {
		t.Error("expected no budget for 26000")
	}
}

func TestResetClearsAccounting(t *testing.T) {
	tr := New(testConfig())
	tr.RecordIteration(40_000, 33_000)
	tr.RecordIteration(1, 1)
	tr.ApplyCompaction(1_000, 1)

	tr.Reset()

	if tr.TotalContextUsed() != 0 || tr.IterationCount() != 0 {
		t.Error("expected counters cleared after reset")
	}
	if tr.CompactionPerformed() || tr.CharsSaved() != 0 {
		t.Error("expected compaction state cleared after reset")
	}
}
