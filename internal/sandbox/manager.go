package sandbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/zpdzap/sandshell/internal/jobs"
	"github.com/zpdzap/sandshell/internal/launcher"
	"golang.org/x/sys/unix"
)

// searchPath is the PATH used to resolve bare command names inside a root.
var searchPath = []string{"/bin", "/usr/bin", "/sbin", "/usr/sbin"}

// ProgressFunc is called as an invocation moves through its phases.
type ProgressFunc func(phase Phase)

// Options configures a Manager.
type Options struct {
	Provider    Provider
	DefaultRoot string

	// Jobs, when set, makes sandboxed commands occupy the foreground slot
	// while they run so interrupts reach them.
	Jobs *jobs.Manager

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Manager prepares roots and runs commands inside them.
type Manager struct {
	provider    Provider
	defaultRoot string
	jobs        *jobs.Manager
	stdin       *os.File
	stdout      io.Writer
	stderr      io.Writer
	logger      *slog.Logger
}

// NewManager creates a sandbox manager. A nil provider means the platform's
// namespace provider.
func NewManager(opts Options) *Manager {
	m := &Manager{
		provider:    opts.Provider,
		defaultRoot: opts.DefaultRoot,
		jobs:        opts.Jobs,
		stdin:       opts.Stdin,
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		logger:      opts.Logger,
	}
	if m.provider == nil {
		m.provider = newNamespaceProvider(false)
	}
	if m.defaultRoot == "" {
		m.defaultRoot = DefaultRoot
	}
	if m.stdin == nil {
		m.stdin = os.Stdin
	}
	if m.stdout == nil {
		m.stdout = os.Stdout
	}
	if m.stderr == nil {
		m.stderr = os.Stderr
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Provider returns the isolation provider in use.
func (m *Manager) Provider() Provider { return m.provider }

// DefaultRoot returns the root used when Execute is given none.
func (m *Manager) DefaultRoot() string { return m.defaultRoot }

// Prepare prepares rootDir, or the default root when rootDir is empty.
func (m *Manager) Prepare(rootDir string) (*Root, error) {
	if rootDir == "" {
		rootDir = m.defaultRoot
	}
	return Prepare(rootDir)
}

// Execute runs command with args confined to rootDir and waits for it. It
// returns nil only when the command exits with status zero. If isolation
// cannot be established the error wraps ErrSandboxUnavailable and the
// command has not run.
func (m *Manager) Execute(command string, args []string, rootDir string, progress ProgressFunc) (jobs.ExitOutcome, error) {
	report := func(phase Phase) {
		if progress != nil {
			progress(phase)
		}
	}

	if command == "" {
		return jobs.ExitOutcome{}, fmt.Errorf("empty command: %w", jobs.ErrInvalidArgument)
	}

	report(PhaseUnprepared)
	root, err := m.Prepare(rootDir)
	if err != nil {
		return jobs.ExitOutcome{}, fmt.Errorf("preparing sandbox: %w", err)
	}
	report(PhasePrepared)

	if err := m.provider.Available(); err != nil {
		return jobs.ExitOutcome{}, err
	}

	target, err := resolveInRoot(root.Path, command)
	if err != nil {
		return jobs.ExitOutcome{}, err
	}

	cmd := &exec.Cmd{
		Path:   target,
		Args:   append([]string{command}, args...),
		Env:    sandboxEnv(),
		Stdin:  m.stdin,
		Stdout: m.stdout,
		Stderr: m.stderr,
	}
	if err := m.provider.Isolate(cmd, root.Path); err != nil {
		return jobs.ExitOutcome{}, err
	}
	reclaim := launcher.AttachTerminal(cmd, m.stdin)

	report(PhaseRunning)
	if err := cmd.Start(); err != nil {
		reclaim()
		return jobs.ExitOutcome{}, classifySpawnError(command, err)
	}
	proc := jobs.Track(cmd)
	m.logger.Debug("sandboxed process started",
		"pid", proc.Pid, "command", command, "root", root.Path, "provider", m.provider.Name())

	var outcome jobs.ExitOutcome
	if m.jobs != nil {
		outcome, err = m.jobs.WaitForeground(proc)
		if errors.Is(err, jobs.ErrForegroundBusy) {
			outcome, err = proc.Wait()
		}
	} else {
		outcome, err = proc.Wait()
	}
	reclaim()
	report(PhaseDone)
	if err != nil {
		return outcome, fmt.Errorf("waiting for sandboxed %s: %w", command, err)
	}

	m.record(root, command, outcome)
	if !outcome.Success() {
		return outcome, fmt.Errorf("%s: %s: %w", command, outcome, ErrCommandFailed)
	}
	return outcome, nil
}

func (m *Manager) record(root *Root, command string, outcome jobs.ExitOutcome) {
	state := root.State
	if state == nil {
		state = &State{Skeleton: SkeletonDirs()}
		root.State = state
	}
	state.Runs++
	state.LastCommand = command
	state.LastOutcome = outcome.String()
	state.LastRunAt = time.Now()
	if err := saveState(root.Path, state); err != nil {
		m.logger.Warn("failed to save sandbox root state", "root", root.Path, "error", err)
	}
}

// resolveInRoot finds command inside root and returns the path as seen after
// the chroot. A command containing a slash is taken relative to the new root.
func resolveInRoot(root, command string) (string, error) {
	if strings.Contains(command, "/") {
		target := path.Clean("/" + command)
		if _, err := os.Lstat(filepath.Join(root, target)); err != nil {
			return "", notInRoot(command, root)
		}
		return target, nil
	}
	for _, dir := range searchPath {
		target := path.Join(dir, command)
		fi, err := os.Lstat(filepath.Join(root, target))
		if err == nil && !fi.IsDir() {
			return target, nil
		}
	}
	return "", notInRoot(command, root)
}

func notInRoot(command, root string) error {
	return &jobs.SpawnError{
		Command: command,
		Errno:   unix.ENOENT,
		Err:     fmt.Errorf("not found in sandbox root %s", root),
	}
}

func spawnError(command string, err error) error {
	return jobs.NewSpawnError(command, err)
}

func sandboxEnv() []string {
	env := []string{
		"PATH=" + strings.Join(searchPath, ":"),
		"HOME=/",
	}
	if term := os.Getenv("TERM"); term != "" {
		env = append(env, "TERM="+term)
	}
	return env
}
