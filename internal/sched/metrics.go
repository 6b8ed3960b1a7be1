// internal/sched/metrics.go

package sched

import "time"

// Metrics is a point-in-time copy of the scheduler's counters.
type Metrics struct {
	TaskExecutions uint64
	ExecTotal      time.Duration
	ExecMin        time.Duration
	ExecMax        time.Duration

	Cycles             uint64
	TimerExpirations   uint64
	TimerCancellations uint64

	WaitCalls      uint64
	WaitTime       time.Duration
	EventsServiced uint64

	TasksCreated uint64
	TasksExited  uint64
	TasksActive  int
	TasksPeak    int
}

// ExecAvg is the mean execution time of a single task step.
func (m Metrics) ExecAvg() time.Duration {
	if m.TaskExecutions == 0 {
		return 0
	}
	return m.ExecTotal / time.Duration(m.TaskExecutions)
}

func (m *Metrics) recordExec(d time.Duration) {
	if m.TaskExecutions == 0 || d < m.ExecMin {
		m.ExecMin = d
	}
	if d > m.ExecMax {
		m.ExecMax = d
	}
	m.TaskExecutions++
	m.ExecTotal += d
}

func (m *Metrics) taskAdded(active int) {
	m.TasksCreated++
	m.TasksActive = active
	if active > m.TasksPeak {
		m.TasksPeak = active
	}
}

func (m *Metrics) taskRemoved(active int, exited bool) {
	if exited {
		m.TasksExited++
	}
	m.TasksActive = active
}

// Metrics returns a snapshot of the instrumentation block.
func (s *Scheduler) Metrics() Metrics {
	if s == nil {
		return Metrics{}
	}
	return s.metrics
}

// ResetMetrics zeroes every counter. TasksActive keeps tracking the number
// of registered tasks and TasksPeak restarts from it.
func (s *Scheduler) ResetMetrics() {
	if s == nil {
		return
	}
	active := s.arena.len()
	s.metrics = Metrics{TasksActive: active, TasksPeak: active}
}
