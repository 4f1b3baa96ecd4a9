package helpers

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/coral-mesh/pulse/pkg/pulse"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	insightStyles = map[string]lipgloss.Style{
		pulse.InsightInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		pulse.InsightWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		pulse.InsightError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		pulse.InsightSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
)

// Heading renders a section title.
func Heading(s string) string { return headingStyle.Render(s) }

// Label renders a dimmed field label.
func Label(s string) string { return labelStyle.Render(s) }

// Insight renders an insight line coloured by its type.
func Insight(in pulse.Insight) string {
	style, ok := insightStyles[in.Type]
	if !ok {
		return "- " + in.Message
	}
	return style.Render("- " + in.Message)
}

// Preview collapses whitespace in s and cuts it to n characters.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
