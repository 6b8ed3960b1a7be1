package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"majjen/internal/sched"
)

// csvTrace records the scheduler's event stream, one row per event.
type csvTrace struct {
	f *os.File
	w *csv.Writer
}

// openCSVTrace creates path and writes the header row.
func openCSVTrace(path string) (*csvTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"mono_ns", "cycle", "event", "task_id", "error"}); err != nil {
		f.Close()
		return nil, err
	}
	return &csvTrace{f: f, w: w}, nil
}

// Hook returns an event hook appending rows to the trace, then calling next.
func (t *csvTrace) Hook(next func(sched.Event)) func(sched.Event) {
	return func(ev sched.Event) {
		errText := ""
		if ev.Err != nil {
			errText = ev.Err.Error()
		}
		task := ""
		if ev.Task != 0 {
			task = ev.Task.String()
		}
		_ = t.w.Write([]string{
			strconv.FormatInt(ev.Time, 10),
			strconv.FormatUint(ev.Cycle, 10),
			ev.Kind.String(),
			task,
			errText,
		})
		if next != nil {
			next(ev)
		}
	}
}

func (t *csvTrace) Close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.f.Close()
		return fmt.Errorf("write trace: %w", err)
	}
	return t.f.Close()
}
