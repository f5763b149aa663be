package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"brainc/internal/compiler"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("#8BC34A") // Lime Green
	colorMuted   = lipgloss.Color("#6b7280")
	colorWarning = lipgloss.Color("#f59e0b")
	colorError   = lipgloss.Color("#e53935")
)

// Styles used by command output.
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	okStyle = lipgloss.NewStyle().
		Foreground(colorPrimary)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

// printReport writes a compile report.
func printReport(w io.Writer, r *compiler.Report) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Session %s", r.SessionID)))

	for _, a := range r.Artifacts {
		note := fmt.Sprintf("(%d tokens)", a.Tokens)
		if a.Unchanged {
			note = fmt.Sprintf("(%d tokens, unchanged)", a.Tokens)
		}
		fmt.Fprintf(w, "  %s %-8s %s %s\n",
			okStyle.Render("✓"), a.Target, a.Path, mutedStyle.Render(note))
	}
	for _, wn := range r.Warnings {
		where := wn.DefinitionID
		if wn.Target != "" {
			where += " [" + wn.Target + "]"
		}
		fmt.Fprintf(w, "  %s %s: %s\n", warnStyle.Render("!"), where, wn.Message)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s %s\n", errorStyle.Render("✗"), f.Error())
	}
	if len(r.Failures) > 0 {
		var counts []string
		for _, kind := range compiler.FailureKinds() {
			if n := len(r.FailuresOf(kind)); n > 0 {
				counts = append(counts, fmt.Sprintf("%s %d", kind, n))
			}
		}
		fmt.Fprintf(w, "  %s\n", mutedStyle.Render("failures by kind: "+strings.Join(counts, ", ")))
	}

	status := okStyle.Render("ok")
	switch r.ExitCode() {
	case 1:
		status = warnStyle.Render("partial failure")
	case 2:
		status = errorStyle.Render("failed")
	}
	fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf("%s  %s", status, r.Summary())))
}

// table renders rows as aligned columns with a styled header.
func table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = c + strings.Repeat(" ", widths[i]-len(c))
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(w, titleStyle.Render(line(header)))
	for _, row := range rows {
		fmt.Fprintln(w, line(row))
	}
}
