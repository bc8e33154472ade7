package jobs

import "fmt"

// Manager owns the job table and the foreground slot. The controller creates
// one and hands it to the launcher; the signal router only ever sees Slot.
type Manager struct {
	Table *Table
	Slot  *Slot
}

// NewManager creates a manager with an empty table and an idle slot.
func NewManager() *Manager {
	return &Manager{
		Table: NewTable(),
		Slot:  &Slot{},
	}
}

// WaitForeground puts p in the foreground slot, blocks until it finishes,
// and empties the slot again.
func (m *Manager) WaitForeground(p *Process) (ExitOutcome, error) {
	if !m.Slot.Acquire(p.Pid) {
		return ExitOutcome{}, ErrForegroundBusy
	}
	defer m.Slot.Release(p.Pid)
	return p.Wait()
}

// BringToForeground waits on the background job at id. A job that has
// already died is removed and reported without blocking. Once waited on,
// the job leaves the table for good.
func (m *Manager) BringToForeground(id int) (ExitOutcome, error) {
	job, proc, ok := m.Table.Lookup(id)
	if !ok {
		return ExitOutcome{}, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}

	if !proc.Alive() {
		m.Table.RemoveByPid(job.Pid)
		return ExitOutcome{}, fmt.Errorf("job %d (pid %d): %w", id, job.Pid, ErrAlreadyTerminated)
	}

	outcome, err := m.WaitForeground(proc)
	if err != nil {
		return outcome, err
	}
	m.Table.RemoveByPid(job.Pid)
	return outcome, nil
}
