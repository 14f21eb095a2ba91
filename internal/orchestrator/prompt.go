package orchestrator

import (
	"fmt"
	"strings"

	"github.com/jdsingh122918/forge/pkg/models"
)

// promptInput is everything the prompt builder needs for one iteration.
type promptInput struct {
	name        string
	description string
	promise     string
	budget      int
	iteration   int
	skills      []string
	history     []string
	blockers    []models.Blocker
}

// buildPrompt composes the iteration prompt: the task statement, the
// completion contract, the signal protocol, accumulated history, and
// acknowledgments for blockers reported last iteration.
func buildPrompt(in promptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n", in.name)
	if in.description != "" {
		fmt.Fprintf(&b, "%s\n", in.description)
	}
	fmt.Fprintf(&b, "\nThis is iteration %d of at most %d.\n", in.iteration, in.budget)
	fmt.Fprintf(&b, "When the task is fully done, print this exact line:\n%s\n", in.promise)
	b.WriteString(`
Report status with marker lines:
PROGRESS: <0-100>%
BLOCKER: <obstacle you cannot resolve>
PIVOT: <approach change>
DECOMPOSE (only if this task should be split into smaller tasks)
`)

	if len(in.skills) > 0 {
		fmt.Fprintf(&b, "\nRelevant skills: %s\n", strings.Join(in.skills, ", "))
	}

	if len(in.blockers) > 0 {
		b.WriteString("\nBlockers you reported, acknowledged:\n")
		for _, bl := range in.blockers {
			fmt.Fprintf(&b, "- %s (work around it or pick a different approach)\n", bl.Description)
		}
	}

	if len(in.history) > 0 {
		b.WriteString("\nPrevious iterations:\n")
		for _, h := range in.history {
			fmt.Fprintf(&b, "%s\n", h)
		}
	}

	return b.String()
}

// iterationNote summarizes one iteration for the history section of
// later prompts.
func iterationNote(iteration int, res *models.IterationResult) string {
	var parts []string
	if res.Signals.ProgressPercent >= 0 {
		parts = append(parts, fmt.Sprintf("progress %d%%", res.Signals.ProgressPercent))
	}
	for _, bl := range res.Signals.Blockers {
		parts = append(parts, "blocker: "+bl.Description)
	}
	if res.Signals.Pivot != "" {
		parts = append(parts, "pivot: "+res.Signals.Pivot)
	}
	if len(parts) == 0 {
		parts = append(parts, "no status reported")
	}
	return fmt.Sprintf("- iteration %d: %s", iteration, strings.Join(parts, "; "))
}

// summarizeHistory collapses the history into a single compact entry.
// The most recent note is preserved verbatim; everything earlier is
// reduced to a count.
func summarizeHistory(history []string) string {
	if len(history) == 0 {
		return ""
	}
	last := history[len(history)-1]
	if len(history) == 1 {
		return last
	}
	return fmt.Sprintf("- summary of %d earlier iterations elided\n%s", len(history)-1, last)
}
