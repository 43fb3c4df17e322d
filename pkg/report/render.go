package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"})

	headerStyle = lipgloss.NewStyle().Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"})
)

// Render formats a summary for the terminal.
func Render(s Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("webshots run %s", s.RunID)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d collections, %d items", s.Collections, s.Items)))
	b.WriteString("\n\n")

	if len(s.Steps) == 0 {
		b.WriteString(dimStyle.Render("no outcomes recorded"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-15s %6s %8s %6s  %8s %8s %8s %8s",
		"step", "ok", "timeout", "error", "min", "avg", "median", "p90")))
	b.WriteString("\n")
	for _, st := range s.Steps {
		failures := ""
		line := fmt.Sprintf("%-15s %6d %8d %6d  %7.2fs %7.2fs %7.2fs %7.2fs",
			st.Step, st.Visits, st.Timeouts, st.Errors,
			st.Min, st.Avg, st.Median, st.P90)
		if st.Timeouts+st.Errors > 0 {
			failures = badStyle.Render(" !")
		}
		b.WriteString(line)
		b.WriteString(failures)
		b.WriteString("\n")
	}
	return b.String()
}
