//go:build unix

// internal/sched/wait_poll_unix.go

package sched

import (
	"time"

	"golang.org/x/sys/unix"
)

// PollWaiter multiplexes readiness with poll(2). Registrations are one-shot:
// a descriptor is dropped as soon as it reports ready.
type PollWaiter struct {
	fds    []unix.PollFd
	ids    []TaskID
	byID   map[TaskID]int
	closed bool
}

// NewPollWaiter returns an empty poll(2) waiter.
func NewPollWaiter() *PollWaiter {
	return &PollWaiter{byID: make(map[TaskID]int)}
}

func newPollWaiter() (Waiter, error) { return NewPollWaiter(), nil }

func (w *PollWaiter) Watch(id TaskID, fd int, events IOEvents) error {
	if w.closed {
		return ErrWaiterClosed
	}
	if fd < 0 {
		return ErrInvalidArgument
	}
	if _, dup := w.byID[id]; dup {
		return ErrAlreadyWatched
	}
	for _, p := range w.fds {
		if int(p.Fd) == fd {
			return ErrAlreadyWatched
		}
	}
	w.byID[id] = len(w.fds)
	w.fds = append(w.fds, unix.PollFd{Fd: int32(fd), Events: eventsToPoll(events)})
	w.ids = append(w.ids, id)
	return nil
}

func (w *PollWaiter) Unwatch(id TaskID) error {
	i, ok := w.byID[id]
	if !ok {
		return ErrNotWatched
	}
	last := len(w.fds) - 1
	if i != last {
		w.fds[i] = w.fds[last]
		w.ids[i] = w.ids[last]
		w.byID[w.ids[i]] = i
	}
	w.fds = w.fds[:last]
	w.ids = w.ids[:last]
	delete(w.byID, id)
	return nil
}

func (w *PollWaiter) Wait(s *Scheduler, timeout time.Duration, _ any) (int, error) {
	if w.closed {
		return 0, ErrWaiterClosed
	}
	for i := range w.fds {
		w.fds[i].Revents = 0
	}
	n, err := unix.Poll(w.fds, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	type ready struct {
		id     TaskID
		events IOEvents
	}
	fired := make([]ready, 0, n)
	for i, p := range w.fds {
		if p.Revents != 0 {
			fired = append(fired, ready{id: w.ids[i], events: pollToEvents(p.Revents)})
		}
	}

	serviced := 0
	for _, r := range fired {
		_ = w.Unwatch(r.id)
		if s.Wake(r.id, r.events) == nil {
			serviced++
		}
	}
	return serviced, nil
}

// Len is the number of registered descriptors.
func (w *PollWaiter) Len() int { return len(w.fds) }

func (w *PollWaiter) Close() error {
	w.closed = true
	w.fds, w.ids = nil, nil
	clear(w.byID)
	return nil
}

func eventsToPoll(events IOEvents) int16 {
	var out int16
	if events&EventRead != 0 {
		out |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		out |= unix.POLLOUT
	}
	return out
}

func pollToEvents(revents int16) IOEvents {
	var events IOEvents
	if revents&unix.POLLIN != 0 {
		events |= EventRead
	}
	if revents&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		events |= EventError
	}
	if revents&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
