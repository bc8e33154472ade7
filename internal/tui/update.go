package tui

import (
	"errors"
	"fmt"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/sandshell/internal/jobs"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(1, msg.Height-chrome))
		m.refresh()
		return m, nil

	case jobsTickMsg:
		m.refresh()
		return m, tickCmd()

	case confirmKillExpiredMsg:
		if m.confirmKill && m.confirmPid == msg.pid {
			m.confirmKill = false
			m.confirmPid = 0
		}
		return m, nil

	case jobKilledMsg:
		switch {
		case msg.err == nil:
			m.message = fmt.Sprintf("Sent SIGTERM to process %d", msg.pid)
			m.isError = false
		case errors.Is(msg.err, jobs.ErrPermissionDenied):
			m.message = "Permission denied: killproc"
			m.isError = true
		default:
			m.message = fmt.Sprintf("Kill failed: %v", msg.err)
			m.isError = true
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Dismiss help modal
	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// If confirming a kill, second x confirms, anything else cancels
	if m.confirmKill {
		m.confirmKill = false
		pid := m.confirmPid
		m.confirmPid = 0
		if msg.String() == "x" {
			m.message = fmt.Sprintf("Stopping process %d...", pid)
			m.isError = false
			src := m.source
			return m, func() tea.Msg {
				return jobKilledMsg{pid: pid, err: src.KillJob(pid, syscall.SIGTERM)}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "r":
		m.refresh()
		m.message = ""
		return m, nil

	case "x":
		job, ok := m.selected()
		if !ok {
			return m, nil
		}
		if job.State == jobs.StateTerminated {
			m.message = fmt.Sprintf("Job %d already terminated", job.ID)
			m.isError = true
			return m, nil
		}
		m.confirmKill = true
		m.confirmPid = job.Pid
		pid := job.Pid
		return m, tea.Tick(confirmWindow, func(time.Time) tea.Msg {
			return confirmKillExpiredMsg{pid: pid}
		})
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func itoa(n int) string { return strconv.Itoa(n) }
