//go:build linux

// internal/sched/wait_epoll_linux.go

package sched

import (
	"time"

	"golang.org/x/sys/unix"
)

// EpollWaiter multiplexes readiness with a single epoll instance mapping
// descriptors to waiting tasks. Registrations are one-shot: a descriptor
// is removed from the interest list once it fires.
type EpollWaiter struct {
	epfd   int
	byFD   map[int]TaskID
	byID   map[TaskID]int
	buf    [128]unix.EpollEvent
	closed bool
}

// NewEpollWaiter creates the epoll instance.
func NewEpollWaiter() (*EpollWaiter, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &EpollWaiter{
		epfd: epfd,
		byFD: make(map[int]TaskID),
		byID: make(map[TaskID]int),
	}, nil
}

func newEpollWaiter() (Waiter, error) {
	w, err := NewEpollWaiter()
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *EpollWaiter) Watch(id TaskID, fd int, events IOEvents) error {
	if w.closed {
		return ErrWaiterClosed
	}
	if fd < 0 {
		return ErrInvalidArgument
	}
	if _, dup := w.byFD[fd]; dup {
		return ErrAlreadyWatched
	}
	if _, dup := w.byID[id]; dup {
		return ErrAlreadyWatched
	}

	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	w.byFD[fd] = id
	w.byID[id] = fd
	return nil
}

func (w *EpollWaiter) Unwatch(id TaskID) error {
	fd, ok := w.byID[id]
	if !ok {
		return ErrNotWatched
	}
	delete(w.byID, id)
	delete(w.byFD, fd)
	err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	// the descriptor may already be closed, which drops it from the set
	if err == unix.EBADF || err == unix.ENOENT {
		return nil
	}
	return err
}

func (w *EpollWaiter) Wait(s *Scheduler, timeout time.Duration, _ any) (int, error) {
	if w.closed {
		return 0, ErrWaiterClosed
	}
	n, err := unix.EpollWait(w.epfd, w.buf[:], timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, ErrInterrupted
		}
		return 0, err
	}

	serviced := 0
	for i := 0; i < n; i++ {
		fd := int(w.buf[i].Fd)
		id, ok := w.byFD[fd]
		if !ok {
			continue
		}
		if err := w.Unwatch(id); err != nil {
			return serviced, err
		}
		if s.Wake(id, epollToEvents(w.buf[i].Events)) == nil {
			serviced++
		}
	}
	return serviced, nil
}

// Len is the number of registered descriptors.
func (w *EpollWaiter) Len() int { return len(w.byFD) }

func (w *EpollWaiter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	clear(w.byFD)
	clear(w.byID)
	return unix.Close(w.epfd)
}

func eventsToEpoll(events IOEvents) uint32 {
	var out uint32
	if events&EventRead != 0 {
		out |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func epollToEvents(raw uint32) IOEvents {
	var events IOEvents
	if raw&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if raw&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if raw&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if raw&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
