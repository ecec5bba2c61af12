package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mural/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_plan":
		content = m.renderInspectPlan()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectPlan() string {
	data, ok := m.data.(*reader.PlanView)
	if !ok {
		return "Invalid data type for inspect_plan"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Topology Plan"))
	b.WriteString("\n\n")

	mode := "builtin"
	if !data.Builtin {
		mode = "distributed"
	}
	rows := [][]string{
		{"Role", data.Role},
		{"Rank", fmt.Sprintf("%d", data.Rank)},
		{"Mode", mode},
	}
	if data.Codec != "" {
		rows = append(rows, []string{"Codec", data.Codec})
	}
	for _, row := range rows {
		value := ValueStyle.Render(row[1])
		if row[0] == "Mode" {
			value = StateStyle(mode).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]+":"), value))
	}

	if len(data.Components) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Components:"))
		b.WriteString("\n")
		for _, c := range data.Components {
			b.WriteString(fmt.Sprintf("  • %s\n", ValueStyle.Render(c)))
		}
	}

	if data.Compositor != "" {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Compositor"))
		b.WriteString("\n")
		for _, row := range [][]string{
			{"  Kind:", data.Compositor},
			{"  Tiles:", data.Tiles},
			{"  Mullions:", data.Mullions},
			{"  Reduction:", fmt.Sprintf("%d", data.ReductionFactor)},
			{"  Replicated:", fmt.Sprintf("%t", data.DataReplicated)},
			{"  Write-back:", fmt.Sprintf("%t", data.WriteBack)},
		} {
			b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(row[0]), ValueStyle.Render(row[1])))
		}
	}

	if data.CaveDisplays > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("CAVE"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("  Displays:"),
			ValueStyle.Render(fmt.Sprintf("%d (%d configured)", data.CaveDisplays, data.CaveScreens))))
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
