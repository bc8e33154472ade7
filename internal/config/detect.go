package config

import (
	"os"
	"os/user"
	"runtime"
	"strings"
)

type Detection struct {
	Root           bool
	UserNamespaces bool
	Isolation      string
	Username       string
}

// Detect inspects the host and suggests isolation settings: real namespaces
// when running as root, rootless user namespaces when the kernel allows them,
// and no isolation elsewhere.
func Detect() Detection {
	det := Detection{
		Root:      os.Geteuid() == 0,
		Isolation: "namespace",
	}
	if u, err := user.Current(); err == nil {
		det.Username = u.Username
	}

	if runtime.GOOS != "linux" {
		det.Isolation = "none"
		return det
	}

	det.UserNamespaces = userNamespacesAllowed()
	return det
}

func userNamespacesAllowed() bool {
	checks := []string{
		"/proc/sys/kernel/unprivileged_userns_clone",
		"/proc/sys/user/max_user_namespaces",
	}
	for _, path := range checks {
		data, err := os.ReadFile(path)
		if err != nil {
			// File not existing usually means userns is allowed.
			continue
		}
		if strings.TrimSpace(string(data)) == "0" {
			return false
		}
	}
	_, err := os.Stat("/proc/self/ns/user")
	return err == nil
}

// Apply writes the detected settings into cfg.
func (d Detection) Apply(cfg *Config) {
	cfg.Sandbox.Isolation = d.Isolation
	cfg.Sandbox.UserNamespace = !d.Root && d.UserNamespaces
	if d.Username != "" && len(cfg.ACL.Admins) == 0 {
		cfg.ACL.Admins = []string{d.Username}
	}
}
