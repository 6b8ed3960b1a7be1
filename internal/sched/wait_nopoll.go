//go:build !unix

package sched

func newPollWaiter() (Waiter, error) { return nil, ErrUnsupported }
