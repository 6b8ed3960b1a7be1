// internal/sched/log.go

package sched

import "fmt"

// Level is the severity of a log message.
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	// LevelSilent as a minimum level suppresses all output.
	LevelSilent
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	case LevelSilent:
		return "silent"
	default:
		return fmt.Sprintf("level(%d)", int8(l))
	}
}

// LogFunc receives every message at or above the configured minimum level,
// together with the user data given to SetLogger. The core never depends on
// what it does with them.
type LogFunc func(level Level, msg string, data any)

type logSink struct {
	fn   LogFunc
	min  Level
	data any
}

// SetLogger installs fn as the log callback. A nil fn disables logging.
func (s *Scheduler) SetLogger(fn LogFunc, min Level, data any) {
	if s == nil {
		return
	}
	s.log = logSink{fn: fn, min: min, data: data}
}

func (s *Scheduler) enabled(level Level) bool {
	return s.log.fn != nil && level < LevelSilent && level >= s.log.min
}

func (s *Scheduler) logf(level Level, format string, args ...any) {
	if !s.enabled(level) {
		return
	}
	s.log.fn(level, fmt.Sprintf(format, args...), s.log.data)
}
