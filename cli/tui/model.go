package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hby-star/minnow/lode"
	"github.com/hby-star/minnow/session"
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Model is a read-only Bubble Tea model for one view.
type Model struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewModel creates a model for the view type.
func NewModel(viewType string, data any) Model {
	return Model{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsSummary:
		content = m.renderSummary()
	case ViewInspectReport:
		content = m.renderReport()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m Model) renderSummary() string {
	data, ok := m.data.(*lode.SummaryRecord)
	if !ok {
		return "Invalid data type for " + ViewStatsSummary
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Summary"))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Delivered", data.BytesDelivered, successColor),
		renderStatBox("Pending", data.BytesPending, warningColor),
		renderStatBox("Stale", data.BytesStale, mutedColor),
		renderStatBox("Beyond Window", data.BytesBeyondWindow, errorColor),
	))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Session", data.SessionID},
		{"Stream", data.StreamID},
		{"Day", data.Day},
		{"Outcome", data.Outcome},
		{"Capacity", fmt.Sprintf("%d", data.Capacity)},
		{"Frames", fmt.Sprintf("%d", data.Frames)},
		{"EOF", formatOptional(data.EOF)},
		{"Duration", fmt.Sprintf("%dms", data.DurationMs)},
	}
	if data.PayloadPath != "" {
		rows = append(rows, [2]string{"Payload", data.PayloadPath})
	}
	writeRows(&b, rows, data.Outcome)

	return BoxStyle.Render(b.String())
}

func (m Model) renderReport() string {
	data, ok := m.data.(*session.Report)
	if !ok {
		return "Invalid data type for " + ViewInspectReport
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Report"))
	b.WriteString("\n\n")

	if s := data.Stream; s != nil {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			renderStatBox("Delivered", s.BytesDelivered, successColor),
			renderStatBox("Next Needed", s.FirstUnassembled, highlightColor),
			renderStatBox("Pending", s.BytesPending, warningColor),
		))
		b.WriteString("\n\n")
	}

	rows := [][2]string{
		{"Session", data.SessionID},
		{"Stream", data.StreamID},
		{"Outcome", string(data.Outcome)},
		{"Message", data.Message},
		{"Exit Code", fmt.Sprintf("%d", data.ExitCode)},
		{"Frames", fmt.Sprintf("%d", data.Frames)},
		{"Duration", fmt.Sprintf("%dms", data.DurationMs)},
	}
	if data.StoragePath != "" {
		rows = append(rows, [2]string{"Storage", data.StoragePath})
	}
	writeRows(&b, rows, string(data.Outcome))

	return BoxStyle.Render(b.String())
}

func writeRows(b *strings.Builder, rows [][2]string, outcome string) {
	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Outcome" {
			value = OutcomeStyle(outcome).Render(row[1])
		}
		fmt.Fprintf(b, "%s %s\n", label, value)
	}
}

func renderStatBox(label string, value uint64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).
		Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

func formatOptional(v *uint64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
