package shell

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Kind identifies a builtin command.
type Kind int

const (
	KindRun Kind = iota + 1
	KindPsList
	KindFgProc
	KindBgProc
	KindKillProc
	KindSandbox
	KindDashboard
	KindHelp
	KindExit
)

var kindNames = map[string]Kind{
	"run":       KindRun,
	"pslist":    KindPsList,
	"jobs":      KindPsList,
	"fgproc":    KindFgProc,
	"bgproc":    KindBgProc,
	"killproc":  KindKillProc,
	"sandbox":   KindSandbox,
	"dashboard": KindDashboard,
	"help":      KindHelp,
	"exit":      KindExit,
	"quit":      KindExit,
}

var usages = map[Kind]string{
	KindRun:      "run <program> [args...] [&]",
	KindPsList:   "pslist",
	KindFgProc:   "fgproc <job-index>",
	KindBgProc:   "bgproc <program> [args...]",
	KindKillProc: "killproc <pid> [signal]",
	KindSandbox:  "sandbox <command> [args...]",
}

// Command is a parsed input line. Which fields are set depends on Kind.
type Command struct {
	Kind       Kind
	Name       string
	Argv       []string
	Background bool
	JobID      int
	Pid        int
	Signal     syscall.Signal
}

// UsageError is returned for a known command with bad arguments.
type UsageError struct {
	Usage  string
	Reason string
}

func (e *UsageError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (usage: %s)", e.Reason, e.Usage)
	}
	return "usage: " + e.Usage
}

// UnknownCommandError is returned for a word that names no builtin.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Name)
}

// Parse turns an input line into a Command. A blank line yields nil and no
// error.
func Parse(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	name, args := fields[0], fields[1:]
	kind, ok := kindNames[name]
	if !ok {
		return nil, &UnknownCommandError{Name: name}
	}
	cmd := &Command{Kind: kind, Name: name}
	usage := func(reason string) error {
		return &UsageError{Usage: usages[kind], Reason: reason}
	}

	switch kind {
	case KindRun:
		if n := len(args); n > 0 && args[n-1] == "&" {
			cmd.Background = true
			args = args[:n-1]
		} else if n > 0 && strings.HasSuffix(args[n-1], "&") && args[n-1] != "&" {
			cmd.Background = true
			args = append(args[:n-1:n-1], strings.TrimSuffix(args[n-1], "&"))
		}
		if len(args) == 0 {
			return nil, usage("")
		}
		cmd.Argv = args

	case KindBgProc:
		if len(args) == 0 {
			return nil, usage("")
		}
		cmd.Argv = args
		cmd.Background = true

	case KindSandbox:
		if len(args) == 0 {
			return nil, usage("")
		}
		cmd.Argv = args

	case KindFgProc:
		if len(args) != 1 {
			return nil, usage("")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 0 {
			return nil, usage(fmt.Sprintf("invalid job index %q", args[0]))
		}
		cmd.JobID = id

	case KindKillProc:
		if len(args) < 1 || len(args) > 2 {
			return nil, usage("")
		}
		pid, err := strconv.Atoi(args[0])
		if err != nil || pid <= 0 {
			return nil, usage(fmt.Sprintf("invalid pid %q", args[0]))
		}
		cmd.Pid = pid
		cmd.Signal = syscall.SIGKILL
		if len(args) == 2 {
			sig, err := ParseSignal(args[1])
			if err != nil {
				return nil, usage(err.Error())
			}
			cmd.Signal = sig
		}
	}
	return cmd, nil
}

// ParseSignal accepts a signal number or a name with or without the SIG
// prefix, in any case.
func ParseSignal(s string) (syscall.Signal, error) {
	s = strings.TrimPrefix(s, "-")
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n > 64 {
			return 0, fmt.Errorf("invalid signal %q", s)
		}
		return syscall.Signal(n), nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("invalid signal %q", s)
}
