// Package audit records every command the shell executes.
package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Log is the audit sink. The zero value discards.
type Log struct {
	logger *slog.Logger
	closer io.Closer
}

// Open appends audit records to the file at path, creating it and its
// directory as needed.
func Open(path, user string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	l := New(f, user)
	l.closer = f
	return l, nil
}

// New writes audit records to w.
func New(w io.Writer, user string) *Log {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Log{logger: slog.New(handler).With("user", user)}
}

// Record logs one executed command and how it went.
func (l *Log) Record(command string, err error) {
	if l == nil || l.logger == nil {
		return
	}
	if err != nil {
		l.logger.Warn("command", "command", command, "outcome", "error", "error", err.Error())
		return
	}
	l.logger.Info("command", "command", command, "outcome", "ok")
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
