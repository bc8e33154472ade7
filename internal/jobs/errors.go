package jobs

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidArgument is returned for an empty or malformed argument vector.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a job id does not name a registered job.
	ErrNotFound = errors.New("no such job")

	// ErrAlreadyTerminated is returned when a job died before it could be
	// brought to the foreground. The stale entry has been removed.
	ErrAlreadyTerminated = errors.New("job already terminated")

	// ErrPermissionDenied is returned when the authorization gate rejects an
	// operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrForegroundBusy is returned when a foreground wait is already
	// outstanding. Callers must serialize foreground execution.
	ErrForegroundBusy = errors.New("another process is already in the foreground")

	// ErrSpawnFailure matches every *SpawnError via errors.Is.
	ErrSpawnFailure = errors.New("spawn failed")
)

// SpawnError reports a fork/exec failure along with its errno.
type SpawnError struct {
	Command string
	Errno   syscall.Errno
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawnFailure, e.Err}
}

// NewSpawnError wraps a Start error, extracting the errno when there is one.
// A failed PATH lookup is reported as ENOENT.
func NewSpawnError(command string, err error) *SpawnError {
	se := &SpawnError{Command: command, Err: err}
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		se.Errno = errno
	case errors.Is(err, exec.ErrNotFound):
		se.Errno = unix.ENOENT
	}
	return se
}
