// Package signals routes interrupts delivered to the shell. When nothing is
// in the foreground the interrupt is absorbed; otherwise it is forwarded to
// the foreground pid and nowhere else.
package signals

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/zpdzap/sandshell/internal/jobs"
	"golang.org/x/sys/unix"
)

// Action is what the router did with a signal.
type Action int

const (
	Absorbed Action = iota
	Forwarded
)

func (a Action) String() string {
	if a == Forwarded {
		return "forwarded"
	}
	return "absorbed"
}

// Options configures a Router.
type Options struct {
	// Signals to intercept. Defaults to SIGINT.
	Signals []os.Signal

	// OnAbsorb runs on the router goroutine when a signal arrives while the
	// slot is idle. The shell uses it to acknowledge the interrupt and
	// redraw its prompt.
	OnAbsorb func(sig os.Signal)

	// Kill delivers a signal. Defaults to unix.Kill.
	Kill func(pid int, sig syscall.Signal) error

	Logger *slog.Logger
}

// Router reads the foreground slot and nothing else. The runtime's signal
// handler only pushes onto the notify channel; the forwarding decision runs
// on an ordinary goroutine.
type Router struct {
	slot     *jobs.Slot
	signals  []os.Signal
	onAbsorb func(os.Signal)
	kill     func(int, syscall.Signal) error
	logger   *slog.Logger

	mu   sync.Mutex
	ch   chan os.Signal
	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a router over slot. Call Start to begin intercepting.
func New(slot *jobs.Slot, opts Options) *Router {
	r := &Router{
		slot:     slot,
		signals:  opts.Signals,
		onAbsorb: opts.OnAbsorb,
		kill:     opts.Kill,
		logger:   opts.Logger,
	}
	if len(r.signals) == 0 {
		r.signals = []os.Signal{os.Interrupt}
	}
	if r.kill == nil {
		r.kill = unix.Kill
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Start installs the signal handler. Calling Start on a running router is a
// no-op.
func (r *Router) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		return
	}

	r.ch = make(chan os.Signal, 4)
	r.stop = make(chan struct{})
	signal.Notify(r.ch, r.signals...)

	r.wg.Add(1)
	go r.loop(r.ch, r.stop)
}

// Stop uninstalls the handler and waits for the router goroutine to exit.
// The signals revert to their default dispositions.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.ch == nil {
		r.mu.Unlock()
		return
	}
	signal.Stop(r.ch)
	close(r.stop)
	r.ch = nil
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Router) loop(ch <-chan os.Signal, stop <-chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case sig := <-ch:
			r.Route(sig)
		case <-stop:
			return
		}
	}
}

// Route handles one signal: Busy(pid) forwards it to pid, Idle absorbs it.
// It returns the action taken and the pid the signal went to, if any.
func (r *Router) Route(sig os.Signal) (Action, int) {
	pid, busy := r.slot.Pid()
	if !busy {
		r.logger.Debug("interrupt absorbed", "signal", sig.String())
		if r.onAbsorb != nil {
			r.onAbsorb(sig)
		}
		return Absorbed, 0
	}

	sysSig, ok := sig.(syscall.Signal)
	if !ok {
		sysSig = syscall.SIGINT
	}
	if err := r.kill(pid, sysSig); err != nil {
		// The child can exit between the slot read and the kill.
		r.logger.Debug("forwarding interrupt failed", "pid", pid, "error", err)
	} else {
		r.logger.Debug("interrupt forwarded", "pid", pid, "signal", sig.String())
	}
	return Forwarded, pid
}
