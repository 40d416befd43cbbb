package checks

import "unicode/utf8"

// defaultMaxOutput caps how much combined output a result retains.
const defaultMaxOutput = 16000

const truncatedMarker = "…(truncated)\n"

// combineOutput joins stdout and stderr and keeps the tail when the result
// exceeds max bytes. Failure summaries are usually at the end. The cut is
// moved forward to a rune boundary.
func combineOutput(stdout, stderr string, max int) string {
	combined := stdout
	if stderr != "" {
		if combined != "" && combined[len(combined)-1] != '\n' {
			combined += "\n"
		}
		combined += stderr
	}
	if max > 0 && len(combined) > max {
		cut := len(combined) - max
		for cut < len(combined) && !utf8.RuneStart(combined[cut]) {
			cut++
		}
		combined = truncatedMarker + combined[cut:]
	}
	return combined
}
