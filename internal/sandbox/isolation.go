package sandbox

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Provider builds the isolation boundary around a command.
type Provider interface {
	// Name identifies the provider in messages and logs.
	Name() string

	// Available reports, before anything is spawned, whether the provider
	// can isolate on this host. Failures wrap ErrSandboxUnavailable.
	Available() error

	// Isolate configures cmd to start confined to root.
	Isolate(cmd *exec.Cmd, root string) error
}

// Isolation kinds accepted by NewProvider.
const (
	IsolationNamespace = "namespace"
	IsolationNone      = "none"
)

// NewProvider returns the provider for kind. userNamespace enables rootless
// operation where the platform supports it.
func NewProvider(kind string, userNamespace bool) (Provider, error) {
	switch kind {
	case "", IsolationNamespace:
		return newNamespaceProvider(userNamespace), nil
	case IsolationNone:
		return UnavailableProvider{Reason: "isolation disabled by configuration"}, nil
	default:
		return nil, fmt.Errorf("unknown isolation kind %q", kind)
	}
}

// UnavailableProvider refuses every request. It stands in on platforms and
// configurations that cannot isolate, so callers get ErrSandboxUnavailable
// instead of an unconfined process.
type UnavailableProvider struct {
	Reason string
}

func (p UnavailableProvider) Name() string { return "unavailable" }

func (p UnavailableProvider) Available() error {
	return fmt.Errorf("%w: %s", ErrSandboxUnavailable, p.Reason)
}

func (p UnavailableProvider) Isolate(*exec.Cmd, string) error {
	return p.Available()
}

// classifySpawnError maps errnos raised while creating the namespace or
// changing root to ErrSandboxUnavailable. Everything else is an ordinary
// spawn failure.
func classifySpawnError(command string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EPERM, unix.ENOSPC, unix.EUSERS, unix.EINVAL, unix.ENOSYS:
			return fmt.Errorf("%w: starting %s: %v", ErrSandboxUnavailable, command, err)
		}
	}
	return spawnError(command, err)
}
