// Package acl decides which shell commands a user may run.
package acl

import (
	"slices"

	"github.com/zpdzap/sandshell/internal/config"
)

// Commands every user may run unless a rule says otherwise.
var basicCommands = []string{
	"help", "pslist", "jobs", "run", "bgproc", "fgproc", "dashboard", "exit", "quit",
}

// Commands reserved for admins unless a rule grants them.
var restrictedCommands = []string{"killproc", "sandbox"}

// Policy evaluates the ACL section of the config.
type Policy struct {
	admins       []string
	rules        []config.Rule
	defaultAllow bool
}

// New builds a policy from config. Unknown commands are denied unless the
// default is "allow".
func New(cfg config.ACL) *Policy {
	return &Policy{
		admins:       cfg.Admins,
		rules:        cfg.Rules,
		defaultAllow: cfg.Default == "allow",
	}
}

// IsAdmin reports whether user bypasses all rules.
func (p *Policy) IsAdmin(user string) bool {
	return user == "root" || slices.Contains(p.admins, user)
}

// Allowed reports whether user may run command. Admins may run anything.
// Otherwise the first rule for the user naming the command, or "*", wins.
func (p *Policy) Allowed(user, command string) bool {
	if p.IsAdmin(user) {
		return true
	}
	for _, r := range p.rules {
		if r.User != user && r.User != "*" {
			continue
		}
		if r.Command == command || r.Command == "*" {
			return r.Allow
		}
	}
	if slices.Contains(basicCommands, command) {
		return true
	}
	if slices.Contains(restrictedCommands, command) {
		return false
	}
	return p.defaultAllow
}

// For returns a predicate bound to user.
func (p *Policy) For(user string) func(command string) bool {
	return func(command string) bool {
		return p.Allowed(user, command)
	}
}
