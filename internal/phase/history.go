package phase

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default digest limits for one AttemptRecord.
const (
	DefaultFeedbackCodeChars  = 500
	DefaultFeedbackErrorChars = 500
)

// AttemptRecord is one failed implementation attempt.
type AttemptRecord struct {
	Code        string `json:"code"`
	ErrorOutput string `json:"error_output"`
}

// History accumulates the failed attempts of a single Green run. It is
// created per run and never shared.
type History struct {
	records    []AttemptRecord
	codeChars  int
	errorChars int
}

// NewHistory returns an empty history that truncates each record's code to
// codeChars and its error to errorChars when building feedback.
func NewHistory(codeChars, errorChars int) *History {
	if codeChars <= 0 {
		codeChars = DefaultFeedbackCodeChars
	}
	if errorChars <= 0 {
		errorChars = DefaultFeedbackErrorChars
	}
	return &History{codeChars: codeChars, errorChars: errorChars}
}

// Add appends a failed attempt.
func (h *History) Add(code, errorOutput string) {
	h.records = append(h.records, AttemptRecord{Code: code, ErrorOutput: errorOutput})
}

// Len returns the number of recorded attempts.
func (h *History) Len() int {
	return len(h.records)
}

// Records returns a copy of the recorded attempts.
func (h *History) Records() []AttemptRecord {
	out := make([]AttemptRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Feedback digests every recorded attempt into text for the next prompt.
// It is empty when nothing has been recorded.
func (h *History) Feedback() string {
	if len(h.records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous attempts that did not make the test pass:\n")
	for i, r := range h.records {
		fmt.Fprintf(&b, "\nAttempt %d code:\n%s\n", i+1, orNone(truncateHead(r.Code, h.codeChars)))
		fmt.Fprintf(&b, "Attempt %d error:\n%s\n", i+1, orNone(truncateTail(r.ErrorOutput, h.errorChars)))
	}
	b.WriteString("\nDo not repeat these approaches. Try something different.")
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

// truncateHead keeps the first n bytes of s, cut on a rune boundary.
func truncateHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// truncateTail keeps the last n bytes of s, cut on a rune boundary.
func truncateTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "…" + s[cut:]
}
