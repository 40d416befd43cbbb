// Package report renders pipeline summaries for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lucasnoah/tddfactory/internal/orchestrator"
	"github.com/lucasnoah/tddfactory/internal/phase"
)

var (
	colorOK    = lipgloss.Color("#2CD7C7")
	colorWarn  = lipgloss.Color("#F4D03F")
	colorError = lipgloss.Color("#E74C3C")
	colorMuted = lipgloss.Color("#6C7A89")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorMuted)
	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	failStyle   = lipgloss.NewStyle().Foreground(colorError)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	warningBox  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorWarn).Padding(0, 1)
	plainStyle  = lipgloss.NewStyle()
)

// Options controls text rendering.
type Options struct {
	// Verbose includes the raw test output of failed phases.
	Verbose bool
}

// column widths: #, status, green attempts, duration
const (
	widthIndex    = 4
	widthStatus   = 17
	widthAttempts = 9
	widthDuration = 10

	maxReqWidth  = 48
	outputIndent = "      "
)

// Text writes a table of cycles followed by failure details and totals.
func Text(w io.Writer, s orchestrator.Summary, opts Options) error {
	var b strings.Builder

	fmt.Fprintln(&b, titleStyle.Render("Run "+s.RunID))
	if s.Total == 0 {
		fmt.Fprintln(&b, mutedStyle.Render("No requirements."))
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(row(headerStyle, headerStyle, "#", "STATUS", "ATTEMPTS", "DURATION", "REQUIREMENT"))
	for i, c := range s.Cycles {
		attempts := "-"
		if c.Green != nil && c.Green.Attempts > 0 {
			attempts = fmt.Sprintf("%d", c.Green.Attempts)
		}
		b.WriteString(row(plainStyle, statusStyle(c),
			fmt.Sprintf("%d", i+1),
			string(c.Status),
			attempts,
			formatDuration(c.Duration),
			truncate(c.Requirement, maxReqWidth),
		))
	}

	if failures := failureDetails(s, opts); failures != "" {
		fmt.Fprintln(&b)
		b.WriteString(failures)
	}

	fmt.Fprintln(&b)
	totals := fmt.Sprintf("%d/%d cycles complete in %s", s.Completed, s.Total, formatDuration(s.Duration))
	if s.AllComplete() {
		fmt.Fprintln(&b, okStyle.Render(totals))
	} else {
		fmt.Fprintln(&b, failStyle.Render(totals))
	}

	if n := s.RollbackFailures(); n > 0 {
		fmt.Fprintln(&b, warningBox.Render(warnStyle.Render(fmt.Sprintf(
			"WARNING: %d refactor rollback(s) failed; the listed implementation files may hold broken code", n))))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// JSON writes the summary as indented JSON.
func JSON(w io.Writer, s orchestrator.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func row(style, status lipgloss.Style, index, st, attempts, duration, requirement string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		style.Width(widthIndex).Render(index),
		status.Width(widthStatus).Render(st),
		style.Width(widthAttempts).Render(attempts),
		style.Width(widthDuration).Render(duration),
		style.Render(requirement),
	) + "\n"
}

func statusStyle(c orchestrator.CycleRecord) lipgloss.Style {
	switch {
	case c.Status == orchestrator.StatusComplete:
		return okStyle
	case c.Refactor != nil && c.Refactor.Kind == phase.KindRollback:
		return warnStyle
	default:
		return failStyle
	}
}

func failureDetails(s orchestrator.Summary, opts Options) string {
	var b strings.Builder
	for i, c := range s.Cycles {
		failed := c.Failed()
		if failed == nil {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n",
			failStyle.Render(fmt.Sprintf("✗ #%d %s", i+1, failed.Phase)),
			mutedStyle.Render(fmt.Sprintf("(%s)", failed.Kind)))
		fmt.Fprintf(&b, "    %s\n", failed.Message)
		if opts.Verbose && strings.TrimSpace(failed.RawOutput) != "" {
			for _, line := range strings.Split(strings.TrimRight(failed.RawOutput, "\n"), "\n") {
				fmt.Fprintf(&b, "%s%s\n", outputIndent, mutedStyle.Render(line))
			}
		}
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
