package logging

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the process-wide structured logger.
var Logger = slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{Level: charmlog.InfoLevel}))

// Verbose reports whether debug logging is enabled.
var Verbose bool

// Setup configures the global logger. Text output goes through a
// charmbracelet/log handler, JSON output through slog's JSON handler.
// A nil writer means stderr.
func Setup(verbose, json bool, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	Verbose = verbose

	if json {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
		return
	}

	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	Logger = slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: verbose,
		Prefix:          "gwsandbox",
	}))
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { Logger.Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { Logger.Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { Logger.Error(msg, args...) }

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger { return Logger.With(args...) }
