// Package render centralizes terminal styling for CLI output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/beacon-works/beacon/internal/runtime"
	"github.com/beacon-works/beacon/internal/spec"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	statusStyles = map[spec.Status]lipgloss.Style{
		spec.StatusTodo:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		spec.StatusReady:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		spec.StatusBlocked:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		spec.StatusDone:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		spec.StatusVerified: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		spec.StatusDeleted:  lipgloss.NewStyle().Strikethrough(true).Faint(true),
	}

	severityStyles = map[runtime.Severity]lipgloss.Style{
		runtime.SeverityInfo:    lipgloss.NewStyle(),
		runtime.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		runtime.SeverityHandoff: lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		runtime.SeverityBlocker: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

// Status renders a task status with its color.
func Status(s spec.Status) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// Severity renders a message severity with its color.
func Severity(s runtime.Severity) string {
	if style, ok := severityStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// Header renders a bold section header.
func Header(s string) string { return headerStyle.Render(s) }

// Dim renders secondary detail text.
func Dim(s string) string { return dimStyle.Render(s) }

// Warning renders a warning line.
func Warning(s string) string { return warnStyle.Render("warning: " + s) }

// Table renders rows under a header with columns padded to the widest
// cell. Styling must be applied by the caller after layout: styled cells
// carry escape codes that would skew width math, so Table takes plain
// strings.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		parts := make([]string, 0, len(cells))
		for i, cell := range cells {
			if i < len(widths) {
				cell += strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			}
			parts = append(parts, cell)
		}
		line := strings.TrimRight(strings.Join(parts, "  "), " ")
		if style != nil {
			line = style.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	writeRow(headers, &headerStyle)
	for _, row := range rows {
		writeRow(row, nil)
	}
	return sb.String()
}

// Rule renders a horizontal divider sized to the content width.
func Rule(width int) string {
	if width <= 0 {
		width = 50
	}
	return dimStyle.Render(strings.Repeat("─", width))
}

// KeyValue renders an aligned "key: value" detail line.
func KeyValue(key, value string) string {
	return fmt.Sprintf("%s %s", dimStyle.Render(key+":"), value)
}
