// Package sandbox runs commands inside an isolated root filesystem. A root is
// a directory holding a minimal skeleton; commands are started in a new mount
// namespace, chrooted into the root, with the root as working directory.
//
// Isolation is pluggable through [Provider]. When the configured provider
// cannot build the isolation boundary, Execute fails with
// [ErrSandboxUnavailable]. It never retries with a weaker mechanism.
package sandbox

import (
	"errors"
	"os"
)

// DefaultRoot is used when no root directory is given.
const DefaultRoot = "/tmp/sandshell_sandbox"

// Phase is the lifecycle stage of a sandboxed invocation.
type Phase string

const (
	PhaseUnprepared Phase = "unprepared"
	PhasePrepared   Phase = "prepared"
	PhaseRunning    Phase = "running"
	PhaseDone       Phase = "done"
)

var (
	// ErrSandboxUnavailable means the isolation boundary could not be
	// created, usually for lack of privilege. The command did not run.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")

	// ErrCommandFailed means the sandboxed command ran and exited non-zero
	// or was killed by a signal.
	ErrCommandFailed = errors.New("sandboxed command failed")
)

// Root is a prepared sandbox root directory.
type Root struct {
	Path     string `json:"path"`
	Prepared bool   `json:"prepared"`
	State    *State `json:"state,omitempty"`
}

// skeleton is the directory tree every root gets. tmp is world-writable
// with the sticky bit.
var skeleton = []struct {
	path string
	mode os.FileMode
}{
	{"bin", 0o755},
	{"usr/bin", 0o755},
	{"lib", 0o755},
	{"lib64", 0o755},
	{"tmp", 0o777 | os.ModeSticky},
	{"dev", 0o755},
	{"proc", 0o755},
}

// SkeletonDirs lists the directories Prepare creates, relative to the root.
func SkeletonDirs() []string {
	dirs := make([]string, len(skeleton))
	for i, d := range skeleton {
		dirs[i] = d.path
	}
	return dirs
}
