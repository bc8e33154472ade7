package jobs

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// Process is a started child that is being reaped in the background. Wait is
// called on the underlying exec.Cmd exactly once, by the reaper goroutine,
// so terminated children never linger as zombies and liveness probes see
// them go away.
type Process struct {
	Pid int

	done    chan struct{}
	outcome ExitOutcome
	err     error
}

// Track starts reaping an already started command.
func Track(cmd *exec.Cmd) *Process {
	p := &Process{
		Pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go func() {
		werr := cmd.Wait()
		p.outcome, p.err = OutcomeOf(cmd.ProcessState, werr)
		close(p.done)
	}()
	return p
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process exits or is killed by a signal.
func (p *Process) Wait() (ExitOutcome, error) {
	<-p.done
	return p.outcome, p.err
}

// Alive is a non-destructive liveness probe. A reaped process is dead;
// otherwise signal zero is sent to the pid. EPERM means the pid exists but
// belongs to someone else, which still counts as alive.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
	}
	return Probe(p.Pid)
}

// Probe reports whether pid refers to an existing process.
func Probe(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
