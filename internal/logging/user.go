package logging

import (
	"fmt"
	"io"
	"os"
)

// Destinations for user-facing output. Commands and tests may redirect them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...any) {
	userf(Stdout, "ℹ", format, args...)
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...any) {
	userf(Stdout, "✓", format, args...)
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...any) {
	userf(Stderr, "⚠", format, args...)
}

// UserError prints an error message to stderr.
func UserError(format string, args ...any) {
	userf(Stderr, "✗", format, args...)
}

func userf(w io.Writer, prefix, format string, args ...any) {
	fmt.Fprintf(w, prefix+" "+format+"\n", args...)
}
