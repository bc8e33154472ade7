package jobs

import (
	"slices"
	"sync"
)

type entry struct {
	proc    *Process
	command string
}

// Table is the registry of background jobs. Jobs are kept in insertion order;
// a job's id is its index in that order, so removing a job renumbers the
// jobs after it. The pid-keyed map is the stable lookup.
type Table struct {
	mu    sync.Mutex
	order []int
	byPid map[int]*entry
}

// NewTable creates an empty job table.
func NewTable() *Table {
	return &Table{byPid: make(map[int]*entry)}
}

// Add registers a started process and returns its job id.
func (t *Table) Add(proc *Process, command string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byPid[proc.Pid]; exists {
		// pid recycled after the old process was reaped
		t.byPid[proc.Pid] = &entry{proc: proc, command: command}
		return slices.Index(t.order, proc.Pid)
	}
	t.order = append(t.order, proc.Pid)
	t.byPid[proc.Pid] = &entry{proc: proc, command: command}
	return len(t.order) - 1
}

// List returns a snapshot of every registered job with its liveness probed
// at call time. It never blocks on a process and never removes entries.
func (t *Table) List() []Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Job, 0, len(t.order))
	for i, pid := range t.order {
		e := t.byPid[pid]
		state := StateRunning
		if !e.proc.Alive() {
			state = StateTerminated
		}
		result = append(result, Job{ID: i, Pid: pid, Command: e.command, State: state})
	}
	return result
}

// RemoveByPid drops the job with the given pid. It reports whether a job
// was removed.
func (t *Table) RemoveByPid(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byPid[pid]; !ok {
		return false
	}
	delete(t.byPid, pid)
	if i := slices.Index(t.order, pid); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return true
}

// Lookup returns the job registered at id along with its process handle.
func (t *Table) Lookup(id int) (Job, *Process, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || id >= len(t.order) {
		return Job{}, nil, false
	}
	pid := t.order[id]
	e := t.byPid[pid]
	return Job{ID: id, Pid: pid, Command: e.command, State: StateRunning}, e.proc, true
}

// Has reports whether pid belongs to a registered job.
func (t *Table) Has(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byPid[pid]
	return ok
}

// Len returns the number of registered jobs.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
