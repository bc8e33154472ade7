// Package supervisor is the process-execution surface the shell dispatcher
// talks to. It ties the job manager, launcher and sandbox together, applies
// the permission gate to privileged operations and feeds the audit sink.
package supervisor

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/zpdzap/sandshell/internal/jobs"
	"github.com/zpdzap/sandshell/internal/launcher"
	"github.com/zpdzap/sandshell/internal/sandbox"
)

// Permission reports whether the current user may perform an operation.
type Permission func(operation string) bool

// Sink receives the command string and result of every operation.
type Sink interface {
	Record(command string, err error)
}

// Operation names passed to Permission.
const (
	OpKill    = "killproc"
	OpSandbox = "sandbox"
)

// Supervisor owns the job manager for the lifetime of the shell.
type Supervisor struct {
	jobs     *jobs.Manager
	launcher *launcher.Launcher
	sandbox  *sandbox.Manager
	allowed  Permission
	sink     Sink
}

// New wires a supervisor. A nil permission allows everything; a nil sink
// discards.
func New(m *jobs.Manager, l *launcher.Launcher, sb *sandbox.Manager, allowed Permission, sink Sink) *Supervisor {
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return &Supervisor{
		jobs:     m,
		launcher: l,
		sandbox:  sb,
		allowed:  allowed,
		sink:     sink,
	}
}

// Jobs returns the job manager.
func (s *Supervisor) Jobs() *jobs.Manager { return s.jobs }

// ExecuteForeground runs argv and waits for it.
func (s *Supervisor) ExecuteForeground(argv []string) (jobs.ExitOutcome, error) {
	outcome, err := s.launcher.Foreground(argv)
	s.record("run "+strings.Join(argv, " "), err)
	return outcome, err
}

// ExecuteBackground starts argv as a background job.
func (s *Supervisor) ExecuteBackground(argv []string) (jobs.Job, error) {
	job, err := s.launcher.Background(argv)
	s.record("bgproc "+strings.Join(argv, " "), err)
	return job, err
}

// ListJobs returns a snapshot of the job table.
func (s *Supervisor) ListJobs() []jobs.Job {
	list := s.jobs.Table.List()
	s.record("pslist", nil)
	return list
}

// Snapshot returns the job table without recording an audit entry. The
// dashboard polls it.
func (s *Supervisor) Snapshot() []jobs.Job {
	return s.jobs.Table.List()
}

// BringToForeground waits on the background job at id.
func (s *Supervisor) BringToForeground(id int) (jobs.ExitOutcome, error) {
	outcome, err := s.jobs.BringToForeground(id)
	s.record("fgproc "+strconv.Itoa(id), err)
	return outcome, err
}

// KillJob sends sig to pid after checking permission.
func (s *Supervisor) KillJob(pid int, sig syscall.Signal) error {
	command := fmt.Sprintf("killproc %d %d", pid, int(sig))
	if !s.allowed(OpKill) {
		err := fmt.Errorf("%s: %w", OpKill, jobs.ErrPermissionDenied)
		s.record(command, err)
		return err
	}
	err := s.launcher.Kill(pid, sig)
	s.record(command, err)
	return err
}

// SandboxExecute runs command confined to rootDir, or the default root when
// rootDir is empty, after checking permission. It returns nil only when the
// command exited with status zero.
func (s *Supervisor) SandboxExecute(command string, args []string, rootDir string) error {
	_, err := s.SandboxRun(command, args, rootDir)
	return err
}

// SandboxRun is SandboxExecute that also reports how the command ended.
func (s *Supervisor) SandboxRun(command string, args []string, rootDir string) (jobs.ExitOutcome, error) {
	line := strings.TrimSpace("sandbox " + command + " " + strings.Join(args, " "))
	if !s.allowed(OpSandbox) {
		err := fmt.Errorf("%s: %w", OpSandbox, jobs.ErrPermissionDenied)
		s.record(line, err)
		return jobs.ExitOutcome{}, err
	}
	outcome, err := s.sandbox.Execute(command, args, rootDir, nil)
	s.record(line, err)
	return outcome, err
}

func (s *Supervisor) record(command string, err error) {
	if s.sink != nil {
		s.sink.Record(command, err)
	}
}
