package metrics

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"majjen/internal/sched"
)

// FormatElapsed renders d in ns, us, ms or s depending on its magnitude.
func FormatElapsed(d time.Duration) string {
	ns := d.Nanoseconds()
	if ns < 0 {
		ns = 0
	}
	switch {
	case ns < 1_000:
		return fmt.Sprintf("%dns", ns)
	case ns < 1_000_000:
		return fmt.Sprintf("%.3fus", float64(ns)/1e3)
	case ns < 1_000_000_000:
		return fmt.Sprintf("%.3fms", float64(ns)/1e6)
	default:
		return fmt.Sprintf("%.6fs", float64(ns)/1e9)
	}
}

// WriteReport prints m as an aligned two-column table.
func WriteReport(w io.Writer, m sched.Metrics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	count := func(v uint64) string { return humanize.Comma(int64(v)) }

	rows := [][2]string{
		{"task executions", count(m.TaskExecutions)},
		{"exec time total", FormatElapsed(m.ExecTotal)},
		{"exec time avg", FormatElapsed(m.ExecAvg())},
		{"exec time min", FormatElapsed(m.ExecMin)},
		{"exec time max", FormatElapsed(m.ExecMax)},
		{"loop cycles", count(m.Cycles)},
		{"timer expirations", count(m.TimerExpirations)},
		{"timer cancellations", count(m.TimerCancellations)},
		{"wait calls", count(m.WaitCalls)},
		{"wait time", FormatElapsed(m.WaitTime)},
		{"events serviced", count(m.EventsServiced)},
		{"tasks created", count(m.TasksCreated)},
		{"tasks exited", count(m.TasksExited)},
		{"tasks active", humanize.Comma(int64(m.TasksActive))},
		{"tasks peak", humanize.Comma(int64(m.TasksPeak))},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
