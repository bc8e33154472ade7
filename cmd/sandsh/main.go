package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"github.com/zpdzap/sandshell/internal/acl"
	"github.com/zpdzap/sandshell/internal/audit"
	"github.com/zpdzap/sandshell/internal/config"
	"github.com/zpdzap/sandshell/internal/jobs"
	"github.com/zpdzap/sandshell/internal/launcher"
	"github.com/zpdzap/sandshell/internal/sandbox"
	"github.com/zpdzap/sandshell/internal/shell"
	"github.com/zpdzap/sandshell/internal/signals"
	"github.com/zpdzap/sandshell/internal/supervisor"
	"github.com/zpdzap/sandshell/internal/tui"
)

var debug bool

func main() {
	root := &cobra.Command{
		Use:           "sandsh",
		Short:         "sandshell: a job-control shell with namespace sandboxing",
		RunE:          runShell,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log process and signal events to stderr")

	root.AddCommand(initCmd())
	root.AddCommand(sandboxCmd())

	if err := root.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError carries a sandboxed command's status out of cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration for this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := os.Getwd()
			if err != nil {
				return err
			}

			if config.Exists(projectDir) {
				fmt.Println("sandshell already initialized in this directory.")
				return nil
			}

			detection := config.Detect()
			cfg := config.Default()
			detection.Apply(cfg)

			if err := config.Save(projectDir, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Printf("Initialized sandshell (isolation: %s)\n", cfg.Sandbox.Isolation)
			fmt.Printf("  Config: %s/%s\n", config.Dir, config.ConfigFile)
			fmt.Printf("  Sandbox root: %s\n", cfg.Sandbox.Root)
			if cfg.Sandbox.UserNamespace {
				fmt.Println("  Rootless: user namespaces enabled")
			} else if !detection.Root && !detection.UserNamespaces {
				fmt.Println("  Note: sandbox needs root or unprivileged user namespaces on this host")
			}
			fmt.Println("\nRun `sandsh` to start the shell.")
			return nil
		},
	}
}

func sandboxCmd() *cobra.Command {
	var rootDir string
	cmd := &cobra.Command{
		Use:   "sandbox [--root DIR] -- <command> [args...]",
		Short: "Run one command inside the sandbox root",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.close()

			// The command holds the foreground slot while it runs, so the
			// router relays Ctrl-C to it.
			router := signals.New(env.jobs.Slot, signals.Options{Logger: env.logger})
			router.Start()
			defer router.Stop()

			outcome, err := env.sup.SandboxRun(args[0], args[1:], rootDir)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, sandbox.ErrCommandFailed):
				return &exitError{code: exitCode(outcome)}
			case errors.Is(err, sandbox.ErrSandboxUnavailable):
				return fmt.Errorf("sandbox unavailable: %w", err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&rootDir, "root", "", "sandbox root directory (default from config)")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func exitCode(o jobs.ExitOutcome) int {
	if o.Signaled() {
		return 128 + int(o.Signal)
	}
	return o.Code
}

func runShell(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	sh := shell.New(env.sup, shell.Options{
		Prompt:    env.cfg.Prompt,
		Slot:      env.jobs.Slot,
		Allowed:   env.allowed,
		Audit:     sinkOf(env.audit),
		Dashboard: func() error { return tui.Run(env.sup) },
		Logger:    env.logger,
	})
	return sh.Run(context.Background())
}

type environment struct {
	cfg     *config.Config
	jobs    *jobs.Manager
	sup     *supervisor.Supervisor
	audit   *audit.Log
	allowed func(string) bool
	logger  *slog.Logger
}

func (e *environment) close() {
	if err := e.audit.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing audit log: %v\n", err)
	}
}

// setup loads configuration and wires the process-control stack.
func setup() (*environment, error) {
	projectDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadOrDefault(projectDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.DiscardHandler)
	if debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	var log *audit.Log
	if !cfg.Audit.Disabled {
		log, err = audit.Open(cfg.AuditPath(projectDir), username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: audit log disabled: %v\n", err)
			log = nil
		}
	}

	allowed := acl.New(cfg.ACL).For(username)

	provider, err := sandbox.NewProvider(cfg.Sandbox.Isolation, cfg.Sandbox.UserNamespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		provider = sandbox.UnavailableProvider{Reason: err.Error()}
	}

	mgr := jobs.NewManager()
	l := launcher.New(mgr, launcher.Options{
		NullDevice: cfg.IO.NullDevice,
		Logger:     logger,
	})
	sb := sandbox.NewManager(sandbox.Options{
		Provider:    provider,
		DefaultRoot: cfg.Sandbox.Root,
		Jobs:        mgr,
		Logger:      logger,
	})

	return &environment{
		cfg:     cfg,
		jobs:    mgr,
		sup:     supervisor.New(mgr, l, sb, allowed, sinkOf(log)),
		audit:   log,
		allowed: allowed,
		logger:  logger,
	}, nil
}

// sinkOf keeps a nil log from becoming a non-nil interface.
func sinkOf(log *audit.Log) supervisor.Sink {
	if log == nil {
		return nil
	}
	return log
}
