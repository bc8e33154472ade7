package shell

import (
	"errors"
	"slices"
	"syscall"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		wantKind Kind
		wantArgv []string
		wantBg   bool
	}{
		{"run sleep 5", KindRun, []string{"sleep", "5"}, false},
		{"run sleep 5 &", KindRun, []string{"sleep", "5"}, true},
		{"run sleep 5&", KindRun, []string{"sleep", "5"}, true},
		{"bgproc sleep 5", KindBgProc, []string{"sleep", "5"}, true},
		{"sandbox ls -la", KindSandbox, []string{"ls", "-la"}, false},
		{"pslist", KindPsList, nil, false},
		{"jobs", KindPsList, nil, false},
		{"dashboard", KindDashboard, nil, false},
		{"help", KindHelp, nil, false},
		{"quit", KindExit, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", cmd.Kind, tt.wantKind)
			}
			if !slices.Equal(cmd.Argv, tt.wantArgv) {
				t.Errorf("Argv = %v, want %v", cmd.Argv, tt.wantArgv)
			}
			if cmd.Background != tt.wantBg {
				t.Errorf("Background = %v, want %v", cmd.Background, tt.wantBg)
			}
		})
	}
}

func TestParseBlank(t *testing.T) {
	cmd, err := Parse("   ")
	if cmd != nil || err != nil {
		t.Errorf("Parse(blank) = %v, %v; want nil, nil", cmd, err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input   string
		unknown bool
	}{
		{"frobnicate", true},
		{"run", false},
		{"run &", false},
		{"bgproc", false},
		{"sandbox", false},
		{"fgproc", false},
		{"fgproc x", false},
		{"fgproc -1", false},
		{"killproc", false},
		{"killproc abc", false},
		{"killproc 0", false},
		{"killproc 12 NOPE", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			var unknown *UnknownCommandError
			var usage *UsageError
			if tt.unknown && !errors.As(err, &unknown) {
				t.Errorf("err = %v, want UnknownCommandError", err)
			}
			if !tt.unknown && !errors.As(err, &usage) {
				t.Errorf("err = %v, want UsageError", err)
			}
		})
	}
}

func TestParseKillproc(t *testing.T) {
	tests := []struct {
		input string
		pid   int
		sig   syscall.Signal
	}{
		{"killproc 42", 42, syscall.SIGKILL},
		{"killproc 42 TERM", 42, syscall.SIGTERM},
		{"killproc 42 sigint", 42, syscall.SIGINT},
		{"killproc 42 -9", 42, syscall.SIGKILL},
		{"killproc 42 15", 42, syscall.SIGTERM},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if cmd.Pid != tt.pid || cmd.Signal != tt.sig {
				t.Errorf("pid %d signal %v, want pid %d signal %v", cmd.Pid, cmd.Signal, tt.pid, tt.sig)
			}
		})
	}
}

func TestParseFgproc(t *testing.T) {
	cmd, err := Parse("fgproc 3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Kind != KindFgProc || cmd.JobID != 3 {
		t.Errorf("cmd = %+v, want fgproc 3", cmd)
	}
}
