// Package shell implements the interactive command loop: it reads a line,
// parses it into a builtin, checks it against the access policy and hands
// it to an Executor.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/zpdzap/sandshell/internal/jobs"
	"github.com/zpdzap/sandshell/internal/sandbox"
	"github.com/zpdzap/sandshell/internal/signals"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// DefaultPrompt is used when Options.Prompt is empty.
const DefaultPrompt = "sandsh> "

// Executor carries out the process operations behind the builtins.
type Executor interface {
	ExecuteForeground(argv []string) (jobs.ExitOutcome, error)
	ExecuteBackground(argv []string) (jobs.Job, error)
	ListJobs() []jobs.Job
	BringToForeground(id int) (jobs.ExitOutcome, error)
	KillJob(pid int, sig syscall.Signal) error
	SandboxExecute(command string, args []string, rootDir string) error
}

// Sink receives commands refused by the access policy.
type Sink interface {
	Record(command string, err error)
}

// Options configures a Shell.
type Options struct {
	Prompt string

	// Slot is the foreground slot the interrupt router consults. Without
	// it the shell leaves signal dispositions alone.
	Slot *jobs.Slot

	// Allowed reports whether the user may run a builtin. Nil allows all.
	Allowed func(command string) bool

	Audit Sink

	// Dashboard opens the job dashboard. Nil disables the builtin.
	Dashboard func() error

	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

// Shell is the interactive loop.
type Shell struct {
	exec      Executor
	prompt    string
	slot      *jobs.Slot
	allowed   func(string) bool
	audit     Sink
	dashboard func() error
	in        io.Reader
	out       io.Writer
	logger    *slog.Logger

	interactive bool
	mu          sync.Mutex
}

// New creates a shell over exec.
func New(exec Executor, opts Options) *Shell {
	s := &Shell{
		exec:      exec,
		prompt:    opts.Prompt,
		slot:      opts.Slot,
		allowed:   opts.Allowed,
		audit:     opts.Audit,
		dashboard: opts.Dashboard,
		in:        opts.In,
		out:       opts.Out,
		logger:    opts.Logger,
	}
	if s.prompt == "" {
		s.prompt = DefaultPrompt
	}
	if s.in == nil {
		s.in = os.Stdin
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if f, ok := s.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.interactive = true
	}
	return s
}

// Run reads and executes commands until end of input, exit, or ctx is
// cancelled. Failures of individual commands are reported and the loop
// continues.
func (s *Shell) Run(ctx context.Context) error {
	if s.slot != nil {
		r := signals.New(s.slot, signals.Options{
			OnAbsorb: s.interrupted,
			Logger:   s.logger,
		})
		r.Start()
		defer r.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Input is read one line per request, so nothing is pending on stdin
	// while a foreground child or the dashboard owns it.
	requests := make(chan struct{})
	lines := make(chan string, 1)
	readErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-requests:
			case <-ctx.Done():
				return
			}
			line, err := readLine(s.in)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
			lines <- line
		}
	}()

	for {
		s.showPrompt()
		select {
		case requests <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if s.interactive {
				s.println("")
			}
			return err
		case line := <-lines:
			if !s.Execute(line) {
				return nil
			}
		}
	}
}

// readLine reads up to the next newline one byte at a time. Bytes after the
// newline stay unread, so a child that shares the descriptor sees them. A
// final line without a newline is returned before io.EOF.
func readLine(r io.Reader) (string, error) {
	var line []byte
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				return strings.TrimSuffix(string(line), "\r"), nil
			}
			line = append(line, b[0])
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
	}
}

// Execute runs a single input line. It returns false when the line asks the
// shell to exit.
func (s *Shell) Execute(line string) bool {
	cmd, err := Parse(line)
	if err != nil {
		s.errorf("%v", err)
		return true
	}
	if cmd == nil {
		return true
	}

	if s.allowed != nil && !s.allowed(cmd.Name) {
		err := fmt.Errorf("%s: %w", cmd.Name, jobs.ErrPermissionDenied)
		if s.audit != nil {
			s.audit.Record(strings.TrimSpace(line), err)
		}
		s.errorf("Permission denied: %s", cmd.Name)
		return true
	}

	switch cmd.Kind {
	case KindExit:
		return false
	case KindHelp:
		s.println(helpText())
	case KindRun, KindBgProc:
		if cmd.Background {
			s.background(cmd.Argv)
		} else {
			s.foreground(cmd.Argv)
		}
	case KindPsList:
		s.listJobs()
	case KindFgProc:
		s.messagef("Bringing job %d to foreground...", cmd.JobID)
		outcome, err := s.exec.BringToForeground(cmd.JobID)
		if err != nil {
			s.report(err)
			return true
		}
		s.reportOutcome(outcome)
	case KindKillProc:
		if err := s.exec.KillJob(cmd.Pid, cmd.Signal); err != nil {
			s.report(err)
			return true
		}
		s.messagef("Sent %s to process %d", signalName(cmd.Signal), cmd.Pid)
	case KindSandbox:
		if err := s.exec.SandboxExecute(cmd.Argv[0], cmd.Argv[1:], ""); err != nil {
			s.report(err)
		}
	case KindDashboard:
		if s.dashboard == nil {
			s.errorf("dashboard is not available")
			return true
		}
		if err := s.dashboard(); err != nil {
			s.report(err)
		}
	}
	return true
}

func (s *Shell) foreground(argv []string) {
	outcome, err := s.exec.ExecuteForeground(argv)
	if err != nil {
		s.report(err)
		return
	}
	s.reportOutcome(outcome)
}

func (s *Shell) background(argv []string) {
	job, err := s.exec.ExecuteBackground(argv)
	if err != nil {
		s.report(err)
		return
	}
	s.messagef("[%d] %d started: %s", job.ID, job.Pid, job.Command)
}

func (s *Shell) listJobs() {
	list := s.exec.ListJobs()
	if len(list) == 0 {
		s.println(dimStyle.Render("No background jobs."))
		return
	}
	for _, j := range list {
		state := statusRunning.Render(string(j.State))
		if j.State == jobs.StateTerminated {
			state = statusTerminated.Render(string(j.State))
		}
		s.println(fmt.Sprintf("[%d] PID %-7d %s  %s", j.ID, j.Pid, state, j.Command))
	}
}

func (s *Shell) reportOutcome(outcome jobs.ExitOutcome) {
	if outcome.Success() {
		return
	}
	s.println(dimStyle.Render(outcome.String()))
}

// report prints a message specific to the kind of failure.
func (s *Shell) report(err error) {
	var spawn *jobs.SpawnError
	switch {
	case errors.Is(err, jobs.ErrPermissionDenied):
		s.errorf("Permission denied: %v", err)
	case errors.Is(err, jobs.ErrNotFound):
		s.errorf("No such job: %v", err)
	case errors.Is(err, jobs.ErrAlreadyTerminated):
		s.errorf("Job already finished: %v", err)
	case errors.Is(err, jobs.ErrForegroundBusy):
		s.errorf("A foreground process is already running")
	case errors.Is(err, sandbox.ErrSandboxUnavailable):
		s.errorf("Sandbox unavailable: %v", err)
	case errors.Is(err, sandbox.ErrCommandFailed):
		s.errorf("Sandboxed command failed: %v", err)
	case errors.As(err, &spawn):
		s.errorf("Cannot start %s: %v", spawn.Command, spawn.Err)
	case errors.Is(err, jobs.ErrInvalidArgument):
		s.errorf("Invalid argument: %v", err)
	default:
		s.errorf("Error: %v", err)
	}
}

// interrupted runs on the router goroutine when Ctrl-C arrives at an idle
// prompt.
func (s *Shell) interrupted(os.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, "^C\n")
	if s.interactive {
		fmt.Fprint(s.out, promptStyle.Render(s.prompt))
	}
}

func (s *Shell) showPrompt() {
	if !s.interactive {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, promptStyle.Render(s.prompt))
}

func (s *Shell) println(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, text)
}

func (s *Shell) messagef(format string, args ...any) {
	s.println(messageStyle.Render(fmt.Sprintf(format, args...)))
}

func (s *Shell) errorf(format string, args ...any) {
	s.println(errorStyle.Render(fmt.Sprintf(format, args...)))
}

func signalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}

func helpText() string {
	line := func(key, desc string) string {
		return helpKeyStyle.Render(fmt.Sprintf("  %-30s", key)) + helpDescStyle.Render(desc)
	}
	return strings.Join([]string{
		helpHeaderStyle.Render("Processes"),
		line("run <program> [args...]", "Run in the foreground and wait"),
		line("run <program> [args...] &", "Run as a background job"),
		line("bgproc <program> [args...]", "Run as a background job"),
		line("pslist, jobs", "List background jobs"),
		line("fgproc <job-index>", "Wait for a background job"),
		line("killproc <pid> [signal]", "Send a signal (default KILL)"),
		"",
		helpHeaderStyle.Render("Isolation"),
		line("sandbox <command> [args...]", "Run confined to the sandbox root"),
		"",
		helpHeaderStyle.Render("Other"),
		line("dashboard", "Open the job dashboard"),
		line("help", "Show this help"),
		line("exit, quit", "Leave the shell"),
	}, "\n")
}
