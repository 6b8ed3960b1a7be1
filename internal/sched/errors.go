// internal/sched/errors.go

package sched

import "errors"

// Standard errors returned by the scheduler core.
var (
	ErrInvalidArgument = errors.New("sched: invalid argument")
	ErrInvalidState    = errors.New("sched: invalid state")
	ErrCapacity        = errors.New("sched: task limit reached")
	ErrTimerCapacity   = errors.New("sched: timer queue limit reached")
	ErrBusy            = errors.New("sched: tasks still registered")
	ErrNoCurrentTask   = errors.New("sched: no task is executing")
	ErrExiting         = errors.New("sched: task already requested exit")
	ErrNoReadiness     = errors.New("sched: waiter has no readiness support")
	ErrNotWaiting      = errors.New("sched: task is not waiting for an event")

	// ErrInterrupted is returned by a Waiter whose blocking call was cut short
	// by a signal. The loop treats it as zero serviced events.
	ErrInterrupted = errors.New("sched: wait interrupted")
)

// Errors reported by the readiness waiters.
var (
	ErrAlreadyWatched = errors.New("sched: resource already watched")
	ErrNotWatched     = errors.New("sched: task not watched")
	ErrWaiterClosed   = errors.New("sched: waiter closed")
	ErrUnsupported    = errors.New("sched: waiter not supported on this platform")
)
