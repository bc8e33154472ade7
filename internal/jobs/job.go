package jobs

import (
	"fmt"
	"os"
	"syscall"
)

// State represents the liveness of a tracked job.
type State string

const (
	StateRunning    State = "Running"
	StateTerminated State = "Terminated"
)

// Job is a point-in-time snapshot of a background job. ID is the job's index
// in the table at the moment of the snapshot; Pid is the stable handle.
type Job struct {
	ID      int    `json:"id"`
	Pid     int    `json:"pid"`
	Command string `json:"command"`
	State   State  `json:"state"`
}

// ExitOutcome describes how a process finished: either a normal exit with a
// status code, or termination by a signal.
type ExitOutcome struct {
	Code   int
	Signal syscall.Signal
}

// Signaled reports whether the process was terminated by a signal.
func (o ExitOutcome) Signaled() bool { return o.Signal != 0 }

// Success reports a normal exit with status zero.
func (o ExitOutcome) Success() bool { return !o.Signaled() && o.Code == 0 }

func (o ExitOutcome) String() string {
	if o.Signaled() {
		return fmt.Sprintf("terminated by signal %d (%s)", int(o.Signal), o.Signal)
	}
	return fmt.Sprintf("exit status %d", o.Code)
}

// OutcomeOf converts a finished process state into an ExitOutcome. The wait
// error is returned only when it is something other than a non-zero exit.
func OutcomeOf(state *os.ProcessState, waitErr error) (ExitOutcome, error) {
	if state == nil {
		return ExitOutcome{}, waitErr
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitOutcome{Signal: ws.Signal()}, nil
	}
	return ExitOutcome{Code: state.ExitCode()}, nil
}
