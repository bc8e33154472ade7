// Package tui is the full-screen job dashboard opened by the dashboard
// builtin.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user leaves it.
func Run(src Source) error {
	p := tea.NewProgram(newModel(src), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
