package tui

import (
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// View types with a TUI rendering.
const (
	ViewStatsSummary  = "stats_summary"
	ViewInspectReport = "inspect_report"
)

// Run starts the TUI for the view type.
// Returns an error if the view type has no TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	p := tea.NewProgram(NewModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStatsSummary, ViewInspectReport}
}

// RenderStatic renders a view without starting a program.
func RenderStatic(viewType string, data any) string {
	model := NewModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
