// Package system wraps the host process boundary so that callers can be
// tested without spawning real commands.
package system

import (
	"context"
	"io"
	"sync"
)

// Result is the captured output of a finished command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// CommandExecutor runs host commands.
type CommandExecutor interface {
	// Run executes a command to completion and captures stdout and stderr
	// separately. A non-zero exit is reported as an error alongside the
	// captured output.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// Stream starts a long-running command and returns its combined
	// output. Closing the reader terminates the command and waits for it.
	// The reader reports io.EOF once the command exits on its own.
	Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, error)

	// LookPath resolves an executable name against PATH.
	LookPath(name string) (string, error)
}

var (
	defaultMu       sync.RWMutex
	defaultExecutor CommandExecutor = &osExecutor{}
)

// DefaultExecutor returns the process-wide executor.
func DefaultExecutor() CommandExecutor {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultExecutor
}

// SetDefaultExecutor replaces the process-wide executor. Intended for tests.
func SetDefaultExecutor(e CommandExecutor) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultExecutor = e
}

// ResetDefaults restores the OS-backed executor.
func ResetDefaults() {
	SetDefaultExecutor(&osExecutor{})
}
