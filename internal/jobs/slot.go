package jobs

import "sync/atomic"

// Slot holds the pid of the process currently running in the foreground,
// or nothing. It is a single atomically updated word so the signal routing
// goroutine can read it while the controller blocks on a wait.
type Slot struct {
	pid atomic.Int64
}

// Acquire claims the slot for pid. It fails if another pid holds it.
func (s *Slot) Acquire(pid int) bool {
	return s.pid.CompareAndSwap(0, int64(pid))
}

// Release empties the slot if pid still holds it.
func (s *Slot) Release(pid int) {
	s.pid.CompareAndSwap(int64(pid), 0)
}

// Pid returns the foreground pid and whether the slot is occupied.
func (s *Slot) Pid() (int, bool) {
	v := s.pid.Load()
	return int(v), v > 0
}
