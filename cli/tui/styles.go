// Package tui provides Bubble Tea TUI components for the mural CLI.
//
// The TUI is opt-in (--tui) and read-only. It renders the same payloads
// as the json, table and yaml formats and shows nothing they do not.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

// rankColors follow the band colours of the test-pattern scene, so a rank
// reads the same in a snapshot and in the frames view.
var rankColors = []lipgloss.Color{
	"#E63946", "#2A9D8F", "#E9C46A", "#457B9D", "#F4A261", "#6D597A",
}

// Styles for TUI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	// BoxStyle frames the plan view.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle holds one counter of the metrics view.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// StateStyle styles frame states ("ok", "empty", "degraded") and plan
// modes ("builtin", "distributed").
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "ok", "builtin":
		return SuccessStyle
	case "empty", "distributed":
		return WarningStyle
	case "degraded", "failed":
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// RankLabel renders "r<rank>" in the rank's band colour.
func RankLabel(rank int64) string {
	c := mutedColor
	if rank >= 0 {
		c = rankColors[rank%int64(len(rankColors))]
	}
	return lipgloss.NewStyle().Foreground(c).Render(fmt.Sprintf("r%-3d", rank))
}
