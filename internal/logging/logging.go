// Package logging wires the scheduler's log callback to zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"majjen/internal/sched"
)

// NewLogger creates a zerolog.Logger writing to stderr.
//
// format: "console" (human-readable) or "json" (structured)
func NewLogger(level sched.Level, format string) zerolog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to the given writer.
func NewLoggerWithWriter(level sched.Level, format string, w io.Writer) zerolog.Logger {
	out := w
	if strings.ToLower(format) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(out).Level(ToZerolog(level)).With().Timestamp().Logger()
}

// ParseLevel converts a string log level to sched.Level.
// Returns sched.LevelInfo for unrecognized values.
func ParseLevel(s string) sched.Level {
	switch strings.ToLower(s) {
	case "trace":
		return sched.LevelTrace
	case "debug":
		return sched.LevelDebug
	case "info":
		return sched.LevelInfo
	case "warn", "warning":
		return sched.LevelWarn
	case "error":
		return sched.LevelError
	case "fatal":
		return sched.LevelFatal
	case "silent", "off", "none":
		return sched.LevelSilent
	default:
		return sched.LevelInfo
	}
}

// ToZerolog maps a scheduler level onto zerolog's.
func ToZerolog(l sched.Level) zerolog.Level {
	switch l {
	case sched.LevelTrace:
		return zerolog.TraceLevel
	case sched.LevelDebug:
		return zerolog.DebugLevel
	case sched.LevelInfo:
		return zerolog.InfoLevel
	case sched.LevelWarn:
		return zerolog.WarnLevel
	case sched.LevelError:
		return zerolog.ErrorLevel
	case sched.LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.Disabled
	}
}

// Sink adapts l to the scheduler's log callback. The callback's user data,
// when set, is attached as the "run" field. Fatal messages are written with
// WithLevel, so logging them never exits the process.
func Sink(l zerolog.Logger) sched.LogFunc {
	return func(level sched.Level, msg string, data any) {
		ev := l.WithLevel(ToZerolog(level))
		if data != nil {
			ev = ev.Interface("run", data)
		}
		ev.Str("component", "sched").Msg(msg)
	}
}
