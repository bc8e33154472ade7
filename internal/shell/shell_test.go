package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/zpdzap/sandshell/internal/jobs"
	"github.com/zpdzap/sandshell/internal/launcher"
	"github.com/zpdzap/sandshell/internal/sandbox"
	"github.com/zpdzap/sandshell/internal/supervisor"
)

type call struct {
	op   string
	argv []string
}

type fakeExecutor struct {
	calls []call
	jobs  []jobs.Job
	err   error
}

func (f *fakeExecutor) ExecuteForeground(argv []string) (jobs.ExitOutcome, error) {
	f.calls = append(f.calls, call{"fg", argv})
	return jobs.ExitOutcome{}, f.err
}

func (f *fakeExecutor) ExecuteBackground(argv []string) (jobs.Job, error) {
	f.calls = append(f.calls, call{"bg", argv})
	if f.err != nil {
		return jobs.Job{}, f.err
	}
	return jobs.Job{ID: 0, Pid: 4242, Command: argv[0], State: jobs.StateRunning}, nil
}

func (f *fakeExecutor) ListJobs() []jobs.Job {
	f.calls = append(f.calls, call{op: "list"})
	return f.jobs
}

func (f *fakeExecutor) BringToForeground(id int) (jobs.ExitOutcome, error) {
	f.calls = append(f.calls, call{"fgproc", []string{fmt.Sprint(id)}})
	return jobs.ExitOutcome{}, f.err
}

func (f *fakeExecutor) KillJob(pid int, sig syscall.Signal) error {
	f.calls = append(f.calls, call{"kill", []string{fmt.Sprint(pid), fmt.Sprint(int(sig))}})
	return f.err
}

func (f *fakeExecutor) SandboxExecute(command string, args []string, rootDir string) error {
	f.calls = append(f.calls, call{"sandbox", append([]string{command}, args...)})
	return f.err
}

type recorder struct {
	commands []string
}

func (r *recorder) Record(command string, err error) {
	r.commands = append(r.commands, command)
}

func newTestShell(exec Executor, opts Options) (*Shell, *bytes.Buffer) {
	var out bytes.Buffer
	opts.Out = &out
	if opts.In == nil {
		opts.In = strings.NewReader("")
	}
	return New(exec, opts), &out
}

func TestExecuteDispatch(t *testing.T) {
	tests := []struct {
		line string
		want call
	}{
		{"run echo hi", call{"fg", []string{"echo", "hi"}}},
		{"run sleep 5 &", call{"bg", []string{"sleep", "5"}}},
		{"bgproc sleep 5", call{"bg", []string{"sleep", "5"}}},
		{"fgproc 2", call{"fgproc", []string{"2"}}},
		{"killproc 99", call{"kill", []string{"99", "9"}}},
		{"killproc 99 TERM", call{"kill", []string{"99", "15"}}},
		{"sandbox ls /", call{"sandbox", []string{"ls", "/"}}},
		{"pslist", call{op: "list"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			exec := &fakeExecutor{}
			sh, _ := newTestShell(exec, Options{})
			if !sh.Execute(tt.line) {
				t.Fatal("Execute returned false")
			}
			if len(exec.calls) != 1 {
				t.Fatalf("calls = %v, want one", exec.calls)
			}
			got := exec.calls[0]
			if got.op != tt.want.op || !slices.Equal(got.argv, tt.want.argv) {
				t.Errorf("call = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExecuteBackgroundMessage(t *testing.T) {
	sh, out := newTestShell(&fakeExecutor{}, Options{})
	sh.Execute("run sleep 5 &")
	if !strings.Contains(out.String(), "[0] 4242 started: sleep") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExecuteExit(t *testing.T) {
	sh, _ := newTestShell(&fakeExecutor{}, Options{})
	for _, line := range []string{"exit", "quit"} {
		if sh.Execute(line) {
			t.Errorf("Execute(%q) = true, want false", line)
		}
	}
}

func TestExecutePermissionDenied(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &recorder{}
	sh, out := newTestShell(exec, Options{
		Allowed: func(cmd string) bool { return cmd != "killproc" },
		Audit:   rec,
	})

	if !sh.Execute("killproc 123") {
		t.Fatal("Execute returned false")
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor called: %v", exec.calls)
	}
	if !strings.Contains(out.String(), "Permission denied") {
		t.Errorf("output = %q, want permission message", out.String())
	}
	if len(rec.commands) != 1 || rec.commands[0] != "killproc 123" {
		t.Errorf("audit = %v, want [killproc 123]", rec.commands)
	}
}

func TestExecuteReportsErrors(t *testing.T) {
	tests := []struct {
		line string
		err  error
		want string
	}{
		{"fgproc 7", fmt.Errorf("job 7: %w", jobs.ErrNotFound), "No such job"},
		{"fgproc 0", fmt.Errorf("job 0: %w", jobs.ErrAlreadyTerminated), "already finished"},
		{"killproc 5", fmt.Errorf("killproc: %w", jobs.ErrPermissionDenied), "Permission denied"},
		{"run nope", jobs.NewSpawnError("nope", syscall.ENOENT), "Cannot start nope"},
		{"sandbox ls", fmt.Errorf("mount namespace: %w", sandbox.ErrSandboxUnavailable), "Sandbox unavailable"},
		{"sandbox false", fmt.Errorf("false: %w", sandbox.ErrCommandFailed), "Sandboxed command failed"},
		{"run x", errors.New("boom"), "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sh, out := newTestShell(&fakeExecutor{err: tt.err}, Options{})
			if !sh.Execute(tt.line) {
				t.Fatal("Execute returned false")
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestExecuteParseErrorsContinue(t *testing.T) {
	sh, out := newTestShell(&fakeExecutor{}, Options{})
	if !sh.Execute("frobnicate") {
		t.Fatal("unknown command ended the shell")
	}
	if !sh.Execute("fgproc") {
		t.Fatal("usage error ended the shell")
	}
	got := out.String()
	if !strings.Contains(got, "unknown command: frobnicate") {
		t.Errorf("output = %q, want unknown command message", got)
	}
	if !strings.Contains(got, "usage: fgproc <job-index>") {
		t.Errorf("output = %q, want usage", got)
	}
}

func TestExecuteDashboard(t *testing.T) {
	sh, out := newTestShell(&fakeExecutor{}, Options{})
	sh.Execute("dashboard")
	if !strings.Contains(out.String(), "dashboard is not available") {
		t.Errorf("output = %q", out.String())
	}

	opened := false
	sh, _ = newTestShell(&fakeExecutor{}, Options{Dashboard: func() error {
		opened = true
		return nil
	}})
	sh.Execute("dashboard")
	if !opened {
		t.Error("dashboard not opened")
	}
}

func TestListJobsOutput(t *testing.T) {
	exec := &fakeExecutor{jobs: []jobs.Job{
		{ID: 0, Pid: 100, Command: "sleep", State: jobs.StateRunning},
		{ID: 1, Pid: 101, Command: "true", State: jobs.StateTerminated},
	}}
	sh, out := newTestShell(exec, Options{})
	sh.Execute("pslist")

	got := out.String()
	for _, want := range []string{"[0] PID 100", "Running", "sleep", "[1] PID 101", "Terminated"} {
		if !strings.Contains(got, want) {
			t.Errorf("output = %q, want it to contain %q", got, want)
		}
	}

	sh, out = newTestShell(&fakeExecutor{}, Options{})
	sh.Execute("jobs")
	if !strings.Contains(out.String(), "No background jobs") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunStopsAtExit(t *testing.T) {
	exec := &fakeExecutor{}
	sh, _ := newTestShell(exec, Options{In: strings.NewReader("pslist\n\nexit\npslist\n")})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Errorf("calls = %v, want one pslist", exec.calls)
	}
}

func TestRunStopsAtEOF(t *testing.T) {
	exec := &fakeExecutor{}
	sh, _ := newTestShell(exec, Options{In: strings.NewReader("pslist\npslist")})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Errorf("calls = %v, want two", exec.calls)
	}
}

func TestRunCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	sh, _ := newTestShell(&fakeExecutor{}, Options{In: r})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHelpListsBuiltins(t *testing.T) {
	sh, out := newTestShell(&fakeExecutor{}, Options{})
	sh.Execute("help")
	for _, name := range []string{"run", "bgproc", "pslist", "fgproc", "killproc", "sandbox", "dashboard", "exit"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("help missing %q", name)
		}
	}
}

func TestReadLineLeavesRestUnread(t *testing.T) {
	r := strings.NewReader("run cat\r\nhello\nlast")

	tests := []string{"run cat", "hello", "last"}
	for _, want := range tests {
		got, err := readLine(r)
		if err != nil {
			t.Fatalf("readLine: %v", err)
		}
		if got != want {
			t.Errorf("readLine = %q, want %q", got, want)
		}
		if want == "run cat" && r.Len() != len("hello\nlast") {
			t.Errorf("%d bytes left unread, want %d", r.Len(), len("hello\nlast"))
		}
	}
	if _, err := readLine(r); !errors.Is(err, io.EOF) {
		t.Errorf("readLine at end = %v, want io.EOF", err)
	}
}

func TestForegroundChildReadsSharedInput(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()

	var child bytes.Buffer
	m := jobs.NewManager()
	l := launcher.New(m, launcher.Options{Stdin: r, Stdout: &child, Stderr: io.Discard})
	sb := sandbox.NewManager(sandbox.Options{
		Provider:    sandbox.UnavailableProvider{Reason: "test"},
		DefaultRoot: t.TempDir(),
		Stdin:       r,
		Stdout:      io.Discard,
		Stderr:      io.Discard,
	})
	sh, out := newTestShell(supervisor.New(m, l, sb, nil, nil), Options{In: r})

	if _, err := io.WriteString(w, "run cat\nhello-from-stdin\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sh.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := child.String(); got != "hello-from-stdin\n" {
		t.Errorf("child read %q, want %q", got, "hello-from-stdin\n")
	}
	if strings.Contains(out.String(), "unknown command") {
		t.Errorf("shell ran the child's input as a command: %q", out.String())
	}
}
