package tui

import (
	"os"
	"syscall"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/zpdzap/sandshell/internal/jobs"
	"golang.org/x/term"
)

// Source supplies the dashboard with jobs and carries out kill requests.
type Source interface {
	Snapshot() []jobs.Job
	KillJob(pid int, sig syscall.Signal) error
}

// chrome is the number of lines around the table: header, stats, two
// dividers, hotkeys and the status line.
const chrome = 7

// model is the Bubble Tea model for the job dashboard.
type model struct {
	source   Source
	table    table.Model
	jobs     []jobs.Job
	message  string
	isError  bool
	quitting bool
	width    int
	height   int

	showHelp bool

	// Double-press kill confirmation
	confirmKill bool
	confirmPid  int
}

func newModel(src Source) model {
	// Get initial terminal size so the first render isn't at width=0
	w, h, _ := term.GetSize(int(os.Stdout.Fd()))
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}

	t := table.New(
		table.WithColumns(columns(w)),
		table.WithFocused(true),
		table.WithHeight(max(1, h-chrome)),
	)
	t.SetStyles(tableStyles())

	m := model{
		source: src,
		table:  t,
		width:  w,
		height: h,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func columns(width int) []table.Column {
	const fixed = 6 + 10 + 12 + 8
	cmd := max(12, width-fixed-4)
	return []table.Column{
		{Title: "Job", Width: 6},
		{Title: "PID", Width: 10},
		{Title: "State", Width: 12},
		{Title: "Command", Width: cmd},
	}
}

// refresh reloads the job list and rebuilds the table rows.
func (m *model) refresh() {
	m.jobs = m.source.Snapshot()
	width := columns(m.width)[3].Width
	rows := make([]table.Row, 0, len(m.jobs))
	for _, j := range m.jobs {
		rows = append(rows, table.Row{
			itoa(j.ID),
			itoa(j.Pid),
			string(j.State),
			ansi.Truncate(j.Command, width, "…"),
		})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// selected returns the job under the cursor.
func (m model) selected() (jobs.Job, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.jobs) {
		return jobs.Job{}, false
	}
	return m.jobs[c], true
}
