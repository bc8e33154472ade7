package jobs

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func startTracked(t *testing.T, name string, args ...string) *Process {
	t.Helper()
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting %s: %v", name, err)
	}
	p := Track(cmd)
	t.Cleanup(func() {
		if p.Alive() {
			syscall.Kill(p.Pid, syscall.SIGKILL)
		}
		<-p.Done()
	})
	return p
}

func TestTableAddStartsAtZero(t *testing.T) {
	table := NewTable()
	p := startTracked(t, "sleep", "5")

	id := table.Add(p, "sleep")
	if id != 0 {
		t.Errorf("first id = %d, want 0", id)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}

	jobs := table.List()
	if len(jobs) != 1 {
		t.Fatalf("List returned %d jobs, want 1", len(jobs))
	}
	if jobs[0].ID != 0 || jobs[0].Pid != p.Pid || jobs[0].Command != "sleep" {
		t.Errorf("job = %+v, want id 0 pid %d command sleep", jobs[0], p.Pid)
	}
	if jobs[0].State != StateRunning {
		t.Errorf("State = %q, want %q", jobs[0].State, StateRunning)
	}
}

func TestTableRemoveCompactsIDs(t *testing.T) {
	table := NewTable()
	a := startTracked(t, "sleep", "5")
	b := startTracked(t, "sleep", "5")
	c := startTracked(t, "sleep", "5")
	table.Add(a, "a")
	table.Add(b, "b")
	table.Add(c, "c")

	if !table.RemoveByPid(b.Pid) {
		t.Fatal("RemoveByPid returned false for a registered pid")
	}
	if table.RemoveByPid(b.Pid) {
		t.Error("RemoveByPid returned true for an already removed pid")
	}

	jobs := table.List()
	if len(jobs) != 2 {
		t.Fatalf("List returned %d jobs, want 2", len(jobs))
	}
	if jobs[1].Pid != c.Pid || jobs[1].ID != 1 {
		t.Errorf("jobs[1] = %+v, want pid %d renumbered to id 1", jobs[1], c.Pid)
	}
}

func TestListReportsTerminatedWithoutPruning(t *testing.T) {
	table := NewTable()
	p := startTracked(t, "true")
	table.Add(p, "true")
	<-p.Done()

	for range 2 {
		jobs := table.List()
		if len(jobs) != 1 {
			t.Fatalf("List returned %d jobs, want 1", len(jobs))
		}
		if jobs[0].State != StateTerminated {
			t.Errorf("State = %q, want %q", jobs[0].State, StateTerminated)
		}
	}
}

func TestBringToForegroundEmptyTable(t *testing.T) {
	m := NewManager()
	_, err := m.BringToForeground(0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBringToForegroundAlreadyTerminated(t *testing.T) {
	m := NewManager()
	p := startTracked(t, "true")
	m.Table.Add(p, "true")
	<-p.Done()

	start := time.Now()
	_, err := m.BringToForeground(0)
	if !errors.Is(err, ErrAlreadyTerminated) {
		t.Fatalf("err = %v, want ErrAlreadyTerminated", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("BringToForeground blocked for %v on a dead job", elapsed)
	}
	if m.Table.Len() != 0 {
		t.Errorf("stale entry not removed, Len = %d", m.Table.Len())
	}
}

func TestBringToForegroundWaitsAndRemoves(t *testing.T) {
	m := NewManager()
	p := startTracked(t, "sh", "-c", "sleep 0.2; exit 3")
	m.Table.Add(p, "sh")

	outcome, err := m.BringToForeground(0)
	if err != nil {
		t.Fatalf("BringToForeground: %v", err)
	}
	if outcome.Code != 3 || outcome.Signaled() {
		t.Errorf("outcome = %v, want exit status 3", outcome)
	}
	if _, busy := m.Slot.Pid(); busy {
		t.Error("foreground slot still set after the wait")
	}
	if m.Table.Has(p.Pid) {
		t.Error("job still registered after being foregrounded")
	}
	if _, err := m.BringToForeground(0); !errors.Is(err, ErrNotFound) {
		t.Errorf("second BringToForeground err = %v, want ErrNotFound", err)
	}
}

func TestSlotSerializesForeground(t *testing.T) {
	var s Slot
	if _, busy := s.Pid(); busy {
		t.Fatal("new slot is busy")
	}
	if !s.Acquire(100) {
		t.Fatal("Acquire on an idle slot failed")
	}
	if s.Acquire(200) {
		t.Error("second Acquire succeeded while the slot was held")
	}
	s.Release(200)
	if pid, _ := s.Pid(); pid != 100 {
		t.Errorf("Release by a non-holder changed the slot to %d", pid)
	}
	s.Release(100)
	if _, busy := s.Pid(); busy {
		t.Error("slot still busy after Release")
	}
}

func TestOutcomeSignaled(t *testing.T) {
	p := startTracked(t, "sleep", "5")
	if err := syscall.Kill(p.Pid, syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}
	outcome, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if outcome.Signal != syscall.SIGTERM {
		t.Errorf("Signal = %v, want %v", outcome.Signal, syscall.SIGTERM)
	}
	if p.Alive() {
		t.Error("Alive = true after the process was reaped")
	}
}

func TestNewSpawnErrorNotFound(t *testing.T) {
	cmd := exec.Command("definitely-not-a-real-command-sandshell")
	err := cmd.Start()
	if err == nil {
		t.Fatal("Start succeeded for a missing command")
	}
	se := NewSpawnError("definitely-not-a-real-command-sandshell", err)
	if se.Errno != syscall.ENOENT {
		t.Errorf("Errno = %v, want ENOENT", se.Errno)
	}
	if !errors.Is(se, ErrSpawnFailure) {
		t.Error("SpawnError does not match ErrSpawnFailure")
	}
}
