// Package contexttrack accounts for the agent conversation context
// consumed by a phase, and decides when the history must be compacted
// into a summary before the model window overflows.
package contexttrack

// Config holds the context budget settings for a run.
type Config struct {
	// LimitPercent caps context at a percentage of the model window.
	// Ignored when LimitChars is set.
	LimitPercent int
	// LimitChars caps context at an absolute character count. Takes
	// precedence over LimitPercent when non-zero.
	LimitChars int64
	// ModelWindowChars is the size of the model's context window in
	// characters.
	ModelWindowChars int64
	// SafetyMarginPercent is subtracted from the effective limit to
	// form the compaction threshold, so compaction happens before the
	// limit is actually reached.
	SafetyMarginPercent int
	// MinPreservedContext is the minimum number of characters that must
	// remain free after any planned allocation.
	MinPreservedContext int64
}

// Tracker accounts for cumulative context usage within a single phase.
// It is reset at phase start and fed once per iteration.
type Tracker struct {
	cfg Config

	// promptChars is the cumulative prompt size across iterations.
	promptChars int64
	// outputChars is the cumulative agent output size across iterations.
	outputChars int64
	// iterationCount is the number of iterations recorded.
	iterationCount int
	// compactionPerformed is true once at least one compaction happened.
	compactionPerformed bool
	// charsSaved is the total characters reclaimed by compactions.
	charsSaved int64
}

// New creates a Tracker with the given configuration.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Reset clears all per-phase accounting. Called at phase start.
func (t *Tracker) Reset() {
	t.promptChars = 0
	t.outputChars = 0
	t.iterationCount = 0
	t.compactionPerformed = false
	t.charsSaved = 0
}

// RecordIteration adds one iteration's prompt and output sizes.
func (t *Tracker) RecordIteration(promptChars, outputChars int64) {
	t.promptChars += promptChars
	t.outputChars += outputChars
	t.iterationCount++
}

// EffectiveLimit resolves the configured limit against the model window.
// An absolute limit wins over a percentage; with neither set, the whole
// window is the limit.
func (t *Tracker) EffectiveLimit() int64 {
	if t.cfg.LimitChars > 0 {
		return t.cfg.LimitChars
	}
	if t.cfg.LimitPercent > 0 {
		return t.cfg.ModelWindowChars * int64(t.cfg.LimitPercent) / 100
	}
	return t.cfg.ModelWindowChars
}

// CompactionThreshold returns the usage level at which compaction should
// occur: the effective limit minus the safety margin.
func (t *Tracker) CompactionThreshold() int64 {
	limit := t.EffectiveLimit()
	return limit - limit*int64(t.cfg.SafetyMarginPercent)/100
}

// TotalContextUsed returns the cumulative context consumed so far.
func (t *Tracker) TotalContextUsed() int64 {
	return t.promptChars + t.outputChars
}

// IterationCount returns the number of iterations currently represented
// in the context.
func (t *Tracker) IterationCount() int {
	return t.iterationCount
}

// CompactionPerformed returns true once at least one compaction happened.
func (t *Tracker) CompactionPerformed() bool {
	return t.compactionPerformed
}

// CharsSaved returns the total characters reclaimed by compactions.
func (t *Tracker) CharsSaved() int64 {
	return t.charsSaved
}

// ShouldCompact returns true when usage has crossed the compaction
// threshold. A single iteration is never compacted: there is nothing
// meaningful to summarize until at least two iterations accumulated.
func (t *Tracker) ShouldCompact() bool {
	if t.iterationCount < 2 {
		return false
	}
	return t.TotalContextUsed() >= t.CompactionThreshold()
}

// ApplyCompaction records that the history was replaced by a summary of
// summaryChars characters covering iterationsCompacted iterations.
// Cumulative counters reset to the summary size; the iteration count is
// decremented but floored at one, since some history always survives
// once a compaction has occurred.
func (t *Tracker) ApplyCompaction(summaryChars int64, iterationsCompacted int) {
	if saved := t.TotalContextUsed() - summaryChars; saved > 0 {
		t.charsSaved += saved
	}
	t.promptChars = summaryChars
	t.outputChars = 0

	t.iterationCount -= iterationsCompacted
	if t.iterationCount < 1 {
		t.iterationCount = 1
	}

	t.compactionPerformed = true
}

// HasBudgetFor returns true if the remaining context budget strictly
// exceeds the estimated size plus the minimum-preserved-context floor.
// Callers use this to compact before the next iteration rather than
// after it overflows.
func (t *Tracker) HasBudgetFor(estimatedChars int64) bool {
	remaining := t.EffectiveLimit() - t.TotalContextUsed()
	return remaining > estimatedChars+t.cfg.MinPreservedContext
}
