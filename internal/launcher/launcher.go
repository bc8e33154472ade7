// Package launcher spawns child processes for the shell, either as a
// blocking foreground run that receives forwarded interrupts or as a
// detached background job registered in the job table.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/zpdzap/sandshell/internal/jobs"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Mode selects how a command is launched.
type Mode int

const (
	Foreground Mode = iota
	Background
)

func (m Mode) String() string {
	if m == Background {
		return "background"
	}
	return "foreground"
}

// Result is what Launch reports. Outcome is set for foreground runs, Job for
// background runs.
type Result struct {
	Outcome jobs.ExitOutcome
	Job     jobs.Job
}

// Options configures a Launcher. Zero values fall back to the process's own
// stdio, os.DevNull and a discarding logger.
type Options struct {
	NullDevice string
	Stdin      *os.File
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *slog.Logger
}

// Launcher starts processes on behalf of the controller.
type Launcher struct {
	jobs       *jobs.Manager
	nullDevice string
	stdin      *os.File
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
}

// New creates a launcher that records into m.
func New(m *jobs.Manager, opts Options) *Launcher {
	l := &Launcher{
		jobs:       m,
		nullDevice: opts.NullDevice,
		stdin:      opts.Stdin,
		stdout:     opts.Stdout,
		stderr:     opts.Stderr,
		logger:     opts.Logger,
	}
	if l.nullDevice == "" {
		l.nullDevice = os.DevNull
	}
	if l.stdin == nil {
		l.stdin = os.Stdin
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// Launch runs argv in the given mode.
func (l *Launcher) Launch(argv []string, mode Mode) (Result, error) {
	switch mode {
	case Foreground:
		outcome, err := l.Foreground(argv)
		return Result{Outcome: outcome}, err
	case Background:
		job, err := l.Background(argv)
		return Result{Job: job}, err
	default:
		return Result{}, fmt.Errorf("launch mode %d: %w", mode, jobs.ErrInvalidArgument)
	}
}

// Foreground runs argv attached to the shell's stdio and blocks until it
// exits or is killed. While it runs, its pid occupies the foreground slot so
// interrupts delivered to the shell are forwarded to it.
func (l *Launcher) Foreground(argv []string) (jobs.ExitOutcome, error) {
	if len(argv) == 0 {
		return jobs.ExitOutcome{}, fmt.Errorf("empty command: %w", jobs.ErrInvalidArgument)
	}
	if pid, busy := l.jobs.Slot.Pid(); busy {
		return jobs.ExitOutcome{}, fmt.Errorf("pid %d: %w", pid, jobs.ErrForegroundBusy)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	reclaim := AttachTerminal(cmd, l.stdin)

	if err := cmd.Start(); err != nil {
		reclaim()
		return jobs.ExitOutcome{}, jobs.NewSpawnError(argv[0], err)
	}
	proc := jobs.Track(cmd)
	l.logger.Debug("foreground process started", "pid", proc.Pid, "command", argv[0])

	outcome, err := l.jobs.WaitForeground(proc)
	if errors.Is(err, jobs.ErrForegroundBusy) {
		unix.Kill(proc.Pid, unix.SIGKILL)
		proc.Wait()
	}
	reclaim()
	if err != nil {
		return outcome, fmt.Errorf("waiting for %s: %w", argv[0], err)
	}
	l.logger.Debug("foreground process finished", "pid", proc.Pid, "outcome", outcome.String())
	return outcome, nil
}

// Background starts argv in its own session with all stdio on the null
// device, registers it as a job and returns without waiting.
func (l *Launcher) Background(argv []string) (jobs.Job, error) {
	if len(argv) == 0 {
		return jobs.Job{}, fmt.Errorf("empty command: %w", jobs.ErrInvalidArgument)
	}

	null, err := os.OpenFile(l.nullDevice, os.O_RDWR, 0)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("opening null device: %w", err)
	}
	defer null.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return jobs.Job{}, jobs.NewSpawnError(argv[0], err)
	}
	proc := jobs.Track(cmd)
	id := l.jobs.Table.Add(proc, argv[0])
	l.logger.Debug("background job started", "id", id, "pid", proc.Pid, "command", argv[0])

	return jobs.Job{
		ID:      id,
		Pid:     proc.Pid,
		Command: argv[0],
		State:   jobs.StateRunning,
	}, nil
}

// Kill sends sig to pid. On success the pid is dropped from the job table;
// the reaper collects the exit status.
func (l *Launcher) Kill(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("pid %d: %w", pid, jobs.ErrInvalidArgument)
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("signalling pid %d: %w", pid, err)
	}
	if l.jobs.Table.RemoveByPid(pid) {
		l.logger.Debug("job killed", "pid", pid, "signal", sig.String())
	}
	return nil
}

// AttachTerminal prepares cmd to run as the terminal's foreground process
// group when stdin is a terminal: the child gets its own group and the
// terminal, so keyboard signals reach only it. The returned func hands the
// terminal back to the shell and must be called once the child has exited.
// When stdin is not a terminal cmd is left alone and the func does nothing.
//
// Terminal stop requests are ignored from then on, and the child inherits
// that across exec. A stopped child never satisfies Wait, so Ctrl-Z would
// otherwise leave the shell blocked while the child holds the terminal.
func AttachTerminal(cmd *exec.Cmd, stdin *os.File) func() {
	if stdin == nil {
		return func() {}
	}
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}

	ignoreStops()
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Foreground = true
	cmd.SysProcAttr.Ctty = fd
	return func() { reclaimTerminal(fd) }
}

// ignoreStops sets SIGTSTP to ignored. Ignored dispositions survive exec,
// unlike handled ones.
func ignoreStops() {
	signal.Ignore(unix.SIGTSTP)
}

// reclaimTerminal makes the shell's process group the terminal's foreground
// group again. The shell is a background group at this point, so SIGTTOU is
// ignored for the duration of the call.
func reclaimTerminal(fd int) {
	signal.Ignore(unix.SIGTTOU)
	defer signal.Reset(unix.SIGTTOU)
	pgrp := unix.Getpgrp()
	_ = unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgrp)
}
