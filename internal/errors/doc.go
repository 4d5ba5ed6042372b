// Package errors provides typed errors with exit codes for gwsandbox-ctl.
//
// # Error Types
//
// SandboxError is the base error type. It carries a Kind, an exit code
// derived from the kind, a message and an optional cause:
//
//	type SandboxError struct {
//	    Kind    Kind   // Taxonomy entry
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess            = 0
//	ExitGeneralError       = 1
//	ExitNotFound           = 2
//	ExitInvalidPath        = 3
//	ExitPermissionDenied   = 4
//	ExitRenderError        = 5
//	ExitWriteError         = 6
//	ExitRuntimeUnavailable = 7
//	ExitRuntimeTimeout     = 8
//	ExitInvalidTransition  = 9
//	ExitBusy               = 10
//	ExitInvalidDefinition  = 11
//	ExitConfigError        = 12
//
// # Matching
//
// Each kind has a sentinel that matches any error of that kind:
//
//	if errors.Is(err, errors.ErrBusy) {
//	    // another operation holds the environment
//	}
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
