package backend

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/jdsingh122918/forge/pkg/models"
)

// Signal markers the agent emits on their own line, uppercase, at the
// start of the line. Everything after the colon is the payload.
const (
	markerProgress  = "PROGRESS:"
	markerBlocker   = "BLOCKER:"
	markerPivot     = "PIVOT:"
	markerDecompose = "DECOMPOSE"
)

// ParseSignals scans agent output for signal markers and returns the
// structured signals. ProgressPercent is -1 when the agent reported no
// estimate.
func ParseSignals(output string) models.IterationSignals {
	signals := models.IterationSignals{ProgressPercent: -1}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, markerProgress):
			if pct, ok := parsePercent(strings.TrimPrefix(line, markerProgress)); ok {
				signals.ProgressPercent = pct
			}
		case strings.HasPrefix(line, markerBlocker):
			desc := strings.TrimSpace(strings.TrimPrefix(line, markerBlocker))
			if desc != "" {
				signals.Blockers = append(signals.Blockers, models.Blocker{Description: desc})
			}
		case strings.HasPrefix(line, markerPivot):
			signals.Pivot = strings.TrimSpace(strings.TrimPrefix(line, markerPivot))
		case line == markerDecompose, strings.HasPrefix(line, markerDecompose+":"):
			signals.DecompositionRequest = true
		}
	}

	return signals
}

// PromiseFound reports whether the promise string appears in the output.
// Matching is an exact substring check; promises are chosen to be
// unambiguous sentinels.
func PromiseFound(output, promise string) bool {
	if promise == "" {
		return false
	}
	return strings.Contains(output, promise)
}

// parsePercent parses a progress payload like "40", "40%", or "40 %".
func parsePercent(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	pct, err := strconv.Atoi(s)
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}
