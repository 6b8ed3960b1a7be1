// internal/sched/options.go

package sched

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithClock replaces the monotonic clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithWaiter registers the wait abstraction up front.
func WithWaiter(w Waiter, data any) Option {
	return func(s *Scheduler) {
		s.waiter = w
		s.waiterData = data
	}
}

// WithLogger installs the log callback up front.
func WithLogger(fn LogFunc, min Level, data any) Option {
	return func(s *Scheduler) {
		s.log = logSink{fn: fn, min: min, data: data}
	}
}

// WithEventHook installs the event hook up front.
func WithEventHook(fn func(Event)) Option {
	return func(s *Scheduler) {
		s.hook = fn
	}
}
