package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// jobsTickMsg triggers a refresh of the job list.
type jobsTickMsg time.Time

// confirmKillExpiredMsg cancels a pending kill confirmation.
type confirmKillExpiredMsg struct {
	pid int
}

// jobKilledMsg is sent after a kill request completes.
type jobKilledMsg struct {
	pid int
	err error
}

const (
	refreshInterval = 2 * time.Second
	confirmWindow   = 2 * time.Second
)

// tickCmd returns a command that sends a tick every refreshInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return jobsTickMsg(t)
	})
}
