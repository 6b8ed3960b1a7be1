// internal/sched/self.go

package sched

import (
	"math"
	"time"
)

// The calls in this file are only valid while a task is inside its own
// Step. They record what the task wants to happen once it returns; the
// loop applies it. The last request of a turn wins, except that Exit is
// final for the turn.

func (s *Scheduler) turn() error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.current == 0 {
		return ErrNoCurrentTask
	}
	if s.exiting {
		return ErrExiting
	}
	return nil
}

// setRequest replaces the pending request, dropping a readiness
// registration that the new request supersedes.
func (s *Scheduler) setRequest(r request) {
	if s.req.next == WaitingEvent {
		if w, ok := s.waiter.(Watcher); ok {
			_ = w.Unwatch(s.current)
		}
	}
	s.req = r
}

// Current returns the id of the executing task, or zero outside a step.
func (s *Scheduler) Current() TaskID {
	if s == nil {
		return 0
	}
	return s.current
}

// Ready returns the readiness that woke the executing task, if it was
// woken by its waiter.
func (s *Scheduler) Ready() IOEvents {
	if s == nil {
		return 0
	}
	return s.ready
}

// Yield re-queues the task at the tail of the run queue. Returning from
// Step without any other request has the same effect.
func (s *Scheduler) Yield() error {
	if err := s.turn(); err != nil {
		return err
	}
	s.setRequest(request{next: Runnable, fd: -1})
	return nil
}

// SleepFor parks the task until at least d has elapsed on the monotonic
// clock, measured from this call. Room in the timer queue is reserved
// here, so a full queue is reported to the task instead of the loop.
func (s *Scheduler) SleepFor(d time.Duration) error {
	if err := s.turn(); err != nil {
		return err
	}
	if d < 0 {
		d = 0
	}
	if err := s.timers.reserve(1); err != nil {
		return err
	}
	now := s.clock.Now()
	wake := int64(math.MaxInt64)
	if int64(d) <= math.MaxInt64-now {
		wake = now + int64(d)
	}
	s.setRequest(request{next: Sleeping, wake: wake, fd: -1})
	return nil
}

// SleepMillis is SleepFor in milliseconds.
func (s *Scheduler) SleepMillis(ms int64) error {
	return s.SleepFor(time.Duration(ms) * time.Millisecond)
}

// WaitForEvent parks the task until fd reports one of events. The waiter
// must implement Watcher.
func (s *Scheduler) WaitForEvent(fd int, events IOEvents) error {
	if err := s.turn(); err != nil {
		return err
	}
	if fd < 0 || events&(EventRead|EventWrite) == 0 {
		return ErrInvalidArgument
	}
	w, ok := s.waiter.(Watcher)
	if !ok {
		return ErrNoReadiness
	}
	// drop an earlier registration from this same turn first
	s.setRequest(request{next: Runnable, fd: -1})
	if err := w.Watch(s.current, fd, events); err != nil {
		return err
	}
	s.req = request{next: WaitingEvent, fd: fd, events: events}
	return nil
}

// Exit ends the task once its step returns. Its record is released in the
// same cycle and its Cleanup hook, if any, runs.
func (s *Scheduler) Exit() error {
	if err := s.turn(); err != nil {
		return err
	}
	s.setRequest(request{next: Exited, fd: -1})
	s.exiting = true
	return nil
}
