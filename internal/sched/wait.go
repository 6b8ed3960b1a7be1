// internal/sched/wait.go

package sched

import (
	"fmt"
	"time"
)

// BlockForever asks a Waiter to block with no timeout.
const BlockForever time.Duration = -1

// IOEvents is the set of readiness conditions a task can wait for.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	// EventError and EventHangup are always reported, never requested.
	EventError
	EventHangup
)

// Waiter is the loop's single blocking primitive. Wait blocks for at most
// timeout (0 polls, BlockForever has no bound), calls s.Wake for every
// waiting task that became ready, and returns how many it woke.
// ErrInterrupted means zero events; any other error is fatal to Run.
type Waiter interface {
	Wait(s *Scheduler, timeout time.Duration, data any) (int, error)
}

// WaitFunc adapts a plain function to Waiter.
type WaitFunc func(s *Scheduler, timeout time.Duration, data any) (int, error)

func (f WaitFunc) Wait(s *Scheduler, timeout time.Duration, data any) (int, error) {
	return f(s, timeout, data)
}

// Watcher is implemented by waiters that can report readiness of external
// resources. Without it, WaitForEvent is unavailable.
type Watcher interface {
	Watch(id TaskID, fd int, events IOEvents) error
	Unwatch(id TaskID) error
}

// SleepWaiter blocks on the clock for the whole timeout and never reports
// readiness.
type SleepWaiter struct {
	Clock Clock
}

func (w SleepWaiter) Wait(s *Scheduler, timeout time.Duration, _ any) (int, error) {
	c := w.Clock
	if c == nil {
		c = s.clock
	}
	if timeout > 0 {
		c.Sleep(timeout)
	}
	return 0, nil
}

// Waiter names accepted by NewWaiter and the config file.
const (
	WaiterSleep = "sleep"
	WaiterPoll  = "poll"
	WaiterEpoll = "epoll"
)

// NewWaiter builds one of the reference waiters by name. Waiters that hold
// OS resources also implement io.Closer.
func NewWaiter(kind string) (Waiter, error) {
	switch kind {
	case WaiterSleep:
		return SleepWaiter{}, nil
	case WaiterPoll:
		return newPollWaiter()
	case WaiterEpoll:
		return newEpollWaiter()
	default:
		return nil, fmt.Errorf("unknown waiter %q: %w", kind, ErrInvalidArgument)
	}
}

// timeoutMillis converts a wait timeout to the millisecond argument of
// poll(2)/epoll_wait(2). Positive sub-millisecond remainders round up so a
// requested wait never turns into a busy poll.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > maxTimeoutMillis {
		ms = maxTimeoutMillis
	}
	return int(ms)
}

const maxTimeoutMillis = 1<<31 - 1
