package errors

import (
	"errors"
	"fmt"
)

// Exit codes for gwsandbox-ctl
const (
	ExitSuccess            = 0
	ExitGeneralError       = 1
	ExitNotFound           = 2
	ExitInvalidPath        = 3
	ExitPermissionDenied   = 4
	ExitRenderError        = 5
	ExitWriteError         = 6
	ExitRuntimeUnavailable = 7
	ExitRuntimeTimeout     = 8
	ExitInvalidTransition  = 9
	ExitBusy               = 10
	ExitInvalidDefinition  = 11
	ExitConfigError        = 12
)

// Kind classifies an error for callers that need to branch on it.
type Kind string

const (
	KindGeneral            Kind = "General"
	KindNotFound           Kind = "NotFound"
	KindInvalidPath        Kind = "InvalidPath"
	KindPermissionDenied   Kind = "PermissionDenied"
	KindRenderError        Kind = "RenderError"
	KindWriteError         Kind = "WriteError"
	KindRuntimeUnavailable Kind = "RuntimeUnavailable"
	KindRuntimeTimeout     Kind = "RuntimeTimeout"
	KindInvalidTransition  Kind = "InvalidTransition"
	KindBusy               Kind = "Busy"
	KindInvalidDefinition  Kind = "InvalidDefinition"
	KindConfigError        Kind = "ConfigError"
)

var exitCodes = map[Kind]int{
	KindGeneral:            ExitGeneralError,
	KindNotFound:           ExitNotFound,
	KindInvalidPath:        ExitInvalidPath,
	KindPermissionDenied:   ExitPermissionDenied,
	KindRenderError:        ExitRenderError,
	KindWriteError:         ExitWriteError,
	KindRuntimeUnavailable: ExitRuntimeUnavailable,
	KindRuntimeTimeout:     ExitRuntimeTimeout,
	KindInvalidTransition:  ExitInvalidTransition,
	KindBusy:               ExitBusy,
	KindInvalidDefinition:  ExitInvalidDefinition,
	KindConfigError:        ExitConfigError,
}

// Sentinels for errors.Is. Any *SandboxError of the same kind matches.
var (
	ErrNotFound           = &SandboxError{Kind: KindNotFound}
	ErrInvalidPath        = &SandboxError{Kind: KindInvalidPath}
	ErrPermissionDenied   = &SandboxError{Kind: KindPermissionDenied}
	ErrRenderError        = &SandboxError{Kind: KindRenderError}
	ErrWriteError         = &SandboxError{Kind: KindWriteError}
	ErrRuntimeUnavailable = &SandboxError{Kind: KindRuntimeUnavailable}
	ErrRuntimeTimeout     = &SandboxError{Kind: KindRuntimeTimeout}
	ErrInvalidTransition  = &SandboxError{Kind: KindInvalidTransition}
	ErrBusy               = &SandboxError{Kind: KindBusy}
	ErrInvalidDefinition  = &SandboxError{Kind: KindInvalidDefinition}
	ErrConfigError        = &SandboxError{Kind: KindConfigError}
)

// SandboxError is the base error type for gwsandbox-ctl
type SandboxError struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

func (e *SandboxError) Error() string {
	if e.Message == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SandboxError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *SandboxError of the same kind.
func (e *SandboxError) Is(target error) bool {
	t, ok := target.(*SandboxError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ExitCode returns the exit code for this error
func (e *SandboxError) ExitCode() int {
	return e.Code
}

// New creates a new SandboxError of the given kind
func New(kind Kind, message string) *SandboxError {
	return &SandboxError{
		Kind:    kind,
		Code:    codeFor(kind),
		Message: message,
	}
}

// Wrap wraps an existing error with a SandboxError
func Wrap(kind Kind, message string, cause error) *SandboxError {
	return &SandboxError{
		Kind:    kind,
		Code:    codeFor(kind),
		Message: message,
		Cause:   cause,
	}
}

func codeFor(kind Kind) int {
	if code, ok := exitCodes[kind]; ok {
		return code
	}
	return ExitGeneralError
}

// Common error constructors

// NotFound returns an error for a missing environment
func NotFound(id string) *SandboxError {
	return New(KindNotFound, fmt.Sprintf("environment not found: %s", id))
}

// InvalidPath returns an error for a path that escapes its root or is malformed
func InvalidPath(path, reason string) *SandboxError {
	return New(KindInvalidPath, fmt.Sprintf("invalid path %q: %s", path, reason))
}

// PermissionDenied returns an error for a filesystem operation that failed
func PermissionDenied(path string, cause error) *SandboxError {
	return Wrap(KindPermissionDenied, fmt.Sprintf("cannot access %s", path), cause)
}

// RenderError returns an error for a structurally invalid definition
func RenderError(message string) *SandboxError {
	return New(KindRenderError, message)
}

// WriteError returns an error for a failed artifact write
func WriteError(path string, cause error) *SandboxError {
	return Wrap(KindWriteError, fmt.Sprintf("failed to write %s", path), cause)
}

// RuntimeUnavailable returns an error when the container runtime cannot be reached
func RuntimeUnavailable(op string, cause error) *SandboxError {
	return Wrap(KindRuntimeUnavailable, fmt.Sprintf("runtime unavailable during %s", op), cause)
}

// RuntimeTimeout returns an error when the runtime did not reach the expected state in time
func RuntimeTimeout(op string, cause error) *SandboxError {
	return Wrap(KindRuntimeTimeout, fmt.Sprintf("runtime %s timed out", op), cause)
}

// InvalidTransition returns an error for an operation that is illegal in the current state
func InvalidTransition(id, op, status string) *SandboxError {
	return New(KindInvalidTransition, fmt.Sprintf("cannot %s environment %s in state %s", op, id, status))
}

// Busy returns an error when another operation holds the environment
func Busy(id string) *SandboxError {
	return New(KindBusy, fmt.Sprintf("environment %s is busy", id))
}

// InvalidDefinition returns an error for definition validation failures
func InvalidDefinition(message string) *SandboxError {
	return New(KindInvalidDefinition, message)
}

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *SandboxError {
	return Wrap(KindConfigError, message, cause)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var sbErr *SandboxError
	if errors.As(err, &sbErr) {
		return sbErr.ExitCode()
	}
	return ExitGeneralError
}

// KindOf returns the kind of the first SandboxError in err's chain.
func KindOf(err error) Kind {
	var sbErr *SandboxError
	if errors.As(err, &sbErr) {
		return sbErr.Kind
	}
	return KindGeneral
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
