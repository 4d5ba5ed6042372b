// Package logging provides logging utilities for gwsandbox-ctl.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings.
// Text output is rendered by charmbracelet/log, JSON output by slog.JSONHandler:
//
//	logging.Debug("rendering manifest", "id", id, "mode", mode)
//	logging.Warn("readiness probe timed out", "id", id, "timeout", timeout)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Starting environment %s...", id)
//	logging.UserSuccess("Environment %s created", id)
//	logging.UserWarning("Environment %s is busy", id)
//	logging.UserError("Failed to start environment: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
