package log

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	scierrors "github.com/YuminosukeSato/scitrain/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// logFileLayout names one log file per process start, e.g. logs/10_17_2026_09_30_00.log.
const logFileLayout = "01_02_2006_15_04_05"

var stackOnce sync.Once

// Options configure Setup.
type Options struct {
	// Level is the minimum level emitted.
	Level Level
	// Console enables a human readable writer on stderr.
	Console bool
	// Dir, when non-empty, receives a timestamped JSON log file.
	Dir string
}

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl    zerolog.Logger
	level Level
}

// NewZerologLogger returns a JSON logger writing to w.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	stackOnce.Do(func() {
		zerolog.ErrorStackMarshaler = marshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl, level: level}
}

// Nop returns a logger that discards every record.
func Nop() Logger {
	return NewZerologLogger(io.Discard, LevelError)
}

// Setup builds the process logger from opts. The returned close function
// releases the log file, if one was opened.
func Setup(opts Options) (*ZerologLogger, func() error, error) {
	var writers []io.Writer
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	closeFn := func() error { return nil }
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, closeFn, scierrors.NewIOError("create log dir", opts.Dir, err)
		}
		path := filepath.Join(opts.Dir, time.Now().Format(logFileLayout)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, scierrors.NewIOError("open log file", path, err)
		}
		writers = append(writers, f)
		closeFn = f.Close
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	return NewZerologLogger(zerolog.MultiLevelWriter(writers...), opts.Level), closeFn, nil
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	err, kv := splitError(fields)
	ctx := l.zl.With().Fields(kv)
	if err != nil {
		ctx = ctx.AnErr(ErrAttrKey, err)
	}
	return &ZerologLogger{zl: ctx.Logger(), level: l.level}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.level
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	err, kv := splitError(fields)
	if err != nil {
		ev = ev.Stack().Err(err)
		var detail zerolog.LogObjectMarshaler
		if errors.As(err, &detail) {
			ev = ev.Object("error.detail", detail)
		}
		ev = ev.Str(ErrorKindKey, scierrors.KindOf(err).String())
	}
	ev.Fields(kv).Msg(msg)
}

// splitError pulls a leading error value out of a key-value list.
func splitError(fields []any) (error, []any) {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// marshalStack extracts the stack recorded by cockroachdb/errors.
func marshalStack(err error) interface{} {
	if s := extractStacktrace(err); s != "" {
		return s
	}
	return nil
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
