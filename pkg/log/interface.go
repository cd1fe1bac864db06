// Package log provides the structured logging interface used by every
// pipeline stage, the trainer and the request surface.
//
// The interface is slog-compatible so the concrete backend can be swapped.
// The production backend is zerolog (see NewZerologLogger); tests use
// TestLogger, which records JSON lines in memory.
//
// Example usage:
//
//	logger := log.NewZerologLogger(os.Stderr, log.LevelInfo).With(
//	    log.StageKey, "train",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Candidate evaluated",
//	    log.ModelNameKey, "Random Forest",
//	    log.R2ScoreKey, 0.83,
//	)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it
	// is logged under ErrAttrKey together with its stack trace.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "error") into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("logging.level", "unknown log level", level)
	}
}

// RouteWarnings sends library warnings raised through errors.Warn to logger.
func RouteWarnings(logger Logger) {
	errors.SetZerologWarnFunc(func(w error) {
		logger.Warn(w.Error(), ErrorTypeKey, warningType(w))
	})
}

func warningType(w error) string {
	var (
		fitFailed *errors.FitFailedWarning
		undefined *errors.UndefinedMetricWarning
	)
	switch {
	case errors.As(w, &fitFailed):
		return "FitFailedWarning"
	case errors.As(w, &undefined):
		return "UndefinedMetricWarning"
	}
	return "Warning"
}
