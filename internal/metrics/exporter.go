// Package metrics exposes scheduler snapshots to Prometheus and as a
// plain-text report.
package metrics

import (
	"errors"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"majjen/internal/sched"
)

// Exporter is a prometheus.Collector over the most recently published
// scheduler snapshot. Publish is called on the scheduler's goroutine;
// Collect may run on any other.
type Exporter struct {
	mu   sync.Mutex
	last sched.Metrics

	executions  *prom.Desc
	execSeconds *prom.Desc
	execMinMax  *prom.Desc
	cycles      *prom.Desc
	timers      *prom.Desc
	waitCalls   *prom.Desc
	waitSeconds *prom.Desc
	events      *prom.Desc
	tasks       *prom.Desc
	tasksActive *prom.Desc
	tasksPeak   *prom.Desc
}

var _ prom.Collector = (*Exporter)(nil)

// NewExporter creates an exporter and registers it with reg. An exporter
// already registered under the same descriptors is returned instead.
func NewExporter(namespace string, reg prom.Registerer, labels prom.Labels) (*Exporter, error) {
	if namespace == "" {
		namespace = "majjen"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	desc := func(name, help string, variable ...string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "", name), help, variable, labels)
	}
	x := &Exporter{
		executions:  desc("task_executions_total", "Task steps executed."),
		execSeconds: desc("task_exec_seconds_total", "Cumulative time spent inside task steps."),
		execMinMax:  desc("task_exec_seconds", "Shortest and longest single task step.", "bound"),
		cycles:      desc("loop_cycles_total", "Scheduler loop cycles."),
		timers:      desc("timers_total", "Timer queue outcomes.", "outcome"),
		waitCalls:   desc("wait_calls_total", "Wait phase invocations."),
		waitSeconds: desc("wait_seconds_total", "Cumulative time spent in the wait phase."),
		events:      desc("events_serviced_total", "Readiness events serviced by the waiter."),
		tasks:       desc("tasks_total", "Task lifecycle transitions.", "transition"),
		tasksActive: desc("tasks_active", "Currently registered tasks."),
		tasksPeak:   desc("tasks_peak", "Peak concurrently registered tasks."),
	}

	if err := reg.Register(x); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*Exporter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return x, nil
}

// Publish replaces the snapshot served to scrapers.
func (x *Exporter) Publish(m sched.Metrics) {
	if x == nil {
		return
	}
	x.mu.Lock()
	x.last = m
	x.mu.Unlock()
}

// Snapshot returns the last published snapshot.
func (x *Exporter) Snapshot() sched.Metrics {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.last
}

// EventHook returns a scheduler event hook that publishes s's metrics on
// every event. Chain it with next, which may be nil.
func (x *Exporter) EventHook(s *sched.Scheduler, next func(sched.Event)) func(sched.Event) {
	return func(e sched.Event) {
		x.Publish(s.Metrics())
		if next != nil {
			next(e)
		}
	}
}

func (x *Exporter) Describe(ch chan<- *prom.Desc) {
	for _, d := range []*prom.Desc{
		x.executions, x.execSeconds, x.execMinMax, x.cycles, x.timers,
		x.waitCalls, x.waitSeconds, x.events, x.tasks, x.tasksActive, x.tasksPeak,
	} {
		ch <- d
	}
}

func (x *Exporter) Collect(ch chan<- prom.Metric) {
	m := x.Snapshot()
	counter := func(d *prom.Desc, v float64, lv ...string) {
		ch <- prom.MustNewConstMetric(d, prom.CounterValue, v, lv...)
	}
	gauge := func(d *prom.Desc, v float64, lv ...string) {
		ch <- prom.MustNewConstMetric(d, prom.GaugeValue, v, lv...)
	}

	counter(x.executions, float64(m.TaskExecutions))
	counter(x.execSeconds, m.ExecTotal.Seconds())
	gauge(x.execMinMax, m.ExecMin.Seconds(), "min")
	gauge(x.execMinMax, m.ExecMax.Seconds(), "max")
	counter(x.cycles, float64(m.Cycles))
	counter(x.timers, float64(m.TimerExpirations), "expired")
	counter(x.timers, float64(m.TimerCancellations), "cancelled")
	counter(x.waitCalls, float64(m.WaitCalls))
	counter(x.waitSeconds, m.WaitTime.Seconds())
	counter(x.events, float64(m.EventsServiced))
	counter(x.tasks, float64(m.TasksCreated), "created")
	counter(x.tasks, float64(m.TasksExited), "exited")
	gauge(x.tasksActive, float64(m.TasksActive))
	gauge(x.tasksPeak, float64(m.TasksPeak))
}
