//go:build linux

package sandbox

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

const (
	capSysChroot = 18
	capSysAdmin  = 21
)

// NamespaceProvider starts the command in a fresh mount namespace and
// chroots it into the root. Without UserNamespace this needs CAP_SYS_ADMIN
// and CAP_SYS_CHROOT. With UserNamespace the caller is mapped to root in a
// new user namespace, which grants both inside it.
type NamespaceProvider struct {
	UserNamespace bool
}

func newNamespaceProvider(userNamespace bool) Provider {
	return &NamespaceProvider{UserNamespace: userNamespace}
}

func (p *NamespaceProvider) Name() string {
	if p.UserNamespace {
		return "namespace+userns"
	}
	return "namespace"
}

func (p *NamespaceProvider) Available() error {
	if p.UserNamespace {
		return checkUserNamespaces()
	}
	caps, err := effectiveCaps()
	if err != nil {
		return fmt.Errorf("%w: reading capabilities: %v", ErrSandboxUnavailable, err)
	}
	for _, c := range []struct {
		bit  uint
		name string
	}{{capSysAdmin, "CAP_SYS_ADMIN"}, {capSysChroot, "CAP_SYS_CHROOT"}} {
		if caps&(1<<c.bit) == 0 {
			return fmt.Errorf("%w: missing %s (run as root or enable sandbox.user_namespace)", ErrSandboxUnavailable, c.name)
		}
	}
	return nil
}

func (p *NamespaceProvider) Isolate(cmd *exec.Cmd, root string) error {
	attr := &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWNS,
		Chroot:     root,
	}
	if p.UserNamespace {
		attr.Cloneflags |= syscall.CLONE_NEWUSER
		attr.UidMappings = []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getuid(), Size: 1},
		}
		attr.GidMappings = []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: os.Getgid(), Size: 1},
		}
		attr.GidMappingsEnableSetgroups = false
	}
	cmd.SysProcAttr = attr
	cmd.Dir = "/"
	return nil
}

func effectiveCaps() (uint64, error) {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, err
	}
	return parseCapEff(data)
}

// parseCapEff extracts the CapEff mask from /proc/<pid>/status.
func parseCapEff(status []byte) (uint64, error) {
	sc := bufio.NewScanner(bytes.NewReader(status))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || key != "CapEff" {
			continue
		}
		return strconv.ParseUint(strings.TrimSpace(value), 16, 64)
	}
	return 0, fmt.Errorf("no CapEff line")
}

// checkUserNamespaces reads the sysctls that gate unprivileged user
// namespaces. Missing files usually mean they are allowed.
func checkUserNamespaces() error {
	if os.Geteuid() == 0 {
		return nil
	}
	if data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return fmt.Errorf("%w: unprivileged user namespaces disabled (kernel.unprivileged_userns_clone=0)", ErrSandboxUnavailable)
		}
	}
	if data, err := os.ReadFile("/proc/sys/user/max_user_namespaces"); err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return fmt.Errorf("%w: user namespaces disabled (user.max_user_namespaces=0)", ErrSandboxUnavailable)
		}
	}
	return nil
}
