package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zpdzap/sandshell/internal/jobs"
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Width(m.width).Render("sandsh jobs"))
	b.WriteString("\n")
	b.WriteString(statsStyle.Render(m.stats()))
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	if len(m.jobs) == 0 {
		b.WriteString(emptyStyle.Render("No background jobs. Start one with run <program> & in the shell."))
	} else {
		b.WriteString(tableFrameStyle.Render(m.table.View()))
	}
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")
	b.WriteString(hotkeysStyle.Render("[↑/↓] select  [x] terminate  [r] refresh  [?] help  [q] back"))
	b.WriteString("\n")

	switch {
	case m.confirmKill:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Press x again to send SIGTERM to process %d", m.confirmPid)))
		b.WriteString("\n")
	case m.message != "":
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(messageStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	if m.showHelp {
		return m.renderHelpOverlay(b.String())
	}
	return b.String()
}

func (m model) stats() string {
	running := 0
	for _, j := range m.jobs {
		if j.State == jobs.StateRunning {
			running++
		}
	}
	noun := "jobs"
	if len(m.jobs) == 1 {
		noun = "job"
	}
	return fmt.Sprintf("%d %s · %d running · %d terminated", len(m.jobs), noun, running, len(m.jobs)-running)
}

func (m model) renderHelpOverlay(base string) string {
	help := strings.Join([]string{
		helpHeaderStyle.Render("Navigation"),
		helpKeyStyle.Render("  ↑/k  ↓/j") + helpDescStyle.Render("   Select job"),
		"",
		helpHeaderStyle.Render("Actions"),
		helpKeyStyle.Render("  x x") + helpDescStyle.Render("         Send SIGTERM to selected job"),
		helpKeyStyle.Render("  r") + helpDescStyle.Render("           Refresh now"),
		"",
		helpHeaderStyle.Render("Jobs refresh every two seconds."),
		"",
		helpKeyStyle.Render("  q") + helpDescStyle.Render("  back to shell") + "     " + helpKeyStyle.Render("?") + helpDescStyle.Render("  close this help"),
	}, "\n")

	modal := helpStyle.Render(help)

	// Center the modal over the base view
	modalWidth := lipgloss.Width(modal)
	modalHeight := lipgloss.Height(modal)
	xOffset := max(0, (m.width-modalWidth)/2)
	yOffset := max(0, (m.height-modalHeight)/2)

	baseLines := strings.Split(base, "\n")
	for len(baseLines) < yOffset+modalHeight {
		baseLines = append(baseLines, "")
	}
	padding := strings.Repeat(" ", xOffset)
	for i, line := range strings.Split(modal, "\n") {
		baseLines[yOffset+i] = padding + line + strings.Repeat(" ", max(0, m.width-xOffset-lipgloss.Width(line)))
	}
	return strings.Join(baseLines, "\n")
}
