package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mural/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_metrics":
		content = m.renderStatsMetrics()
	case "stats_frames":
		content = m.renderStatsFrames()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsMetrics() string {
	data, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Session %s (%s)", data.Session, data.Role)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Topology:"), ValueStyle.Render(data.Topology)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Codec:"), ValueStyle.Render(data.Codec)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Completed:"), ValueStyle.Render(data.Ts)))

	frames := []string{
		m.renderStatBox("Sent", data.FramesSent, highlightColor),
		m.renderStatBox("Received", data.FramesReceived, highlightColor),
		m.renderStatBox("Empty", data.FramesEmpty, mutedColor),
		m.renderStatBox("Degraded", data.FramesDegraded, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, frames...))
	b.WriteString("\n")

	codec := []string{
		m.renderStatBox("Compress fail", data.CompressFailures, errorColor),
		m.renderStatBox("Decompress fail", data.DecompressFailures, errorColor),
		m.renderStatBox("Codec fallback", data.CodecFallbacks, warningColor),
		m.renderStatBox("Composites", data.Composites, successColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, codec...))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Bytes:"),
		ValueStyle.Render(fmt.Sprintf("%d raw / %d wire (%.2fx)", data.RawBytes, data.WireBytes, data.CompressionRatio))))

	if len(data.RawFallbacks) > 0 {
		names := make([]string, 0, len(data.RawFallbacks))
		for name := range data.RawFallbacks {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%d", name, data.RawFallbacks[name])
		}
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Raw fallbacks:"),
			WarningStyle.Render(strings.Join(parts, " "))))
	}

	return b.String()
}

func (m StatsModel) renderStatsFrames() string {
	data, ok := m.data.([]reader.FrameSummary)
	if !ok {
		return "Invalid data type for stats_frames"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Recent Frames"))
	b.WriteString("\n\n")

	if len(data) == 0 {
		b.WriteString(LabelStyle.Render("(no frames)"))
		return b.String()
	}

	for _, f := range data {
		state := "ok"
		switch {
		case f.Degraded:
			state = "degraded"
		case !f.HasImage:
			state = "empty"
		}
		b.WriteString(fmt.Sprintf("%6d  %s %-9s %4dx%-4d %9d → %-9d %6.1fms  %s\n",
			f.Seq,
			RankLabel(f.Rank),
			StateStyle(state).Render(fmt.Sprintf("%-9s", state)),
			f.Width, f.Height,
			f.RawBytes, f.WireBytes,
			f.DurationMs,
			f.Codec))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
