//go:build !linux

package sched

func newEpollWaiter() (Waiter, error) { return nil, ErrUnsupported }
