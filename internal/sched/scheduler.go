// internal/sched/scheduler.go

package sched

import (
	"errors"
	"fmt"
	"time"
)

// Scheduler runs cooperative tasks on the calling goroutine. It is not safe
// for concurrent use: every method must be called from the goroutine that
// owns it, which includes task steps, waiters and hooks invoked by Run.
type Scheduler struct {
	// Scheduler-related
	arena    arena       // task records, addressed by slot
	runq     *runQueue   // runnable tasks, FIFO
	timers   *timerQueue // sleeping tasks, earliest wake first
	waiting  *waitSet    // tasks parked in WaitingEvent
	maxTasks int         // registration limit, 0 = unlimited

	// the task inside its own Step, and what it asked for
	current TaskID
	req     request
	exiting bool
	ready   IOEvents

	waiter     Waiter
	waiterData any

	clock   Clock
	metrics Metrics
	cycle   uint64

	// logging-related
	log  logSink
	hook func(Event)

	running   bool
	destroyed bool
}

// New creates a new Scheduler instance with the given configuration.
func New(cfg Config, opts ...Option) *Scheduler {
	cfg = cfg.clamp()
	s := &Scheduler{
		runq:     newRunQueue(),
		waiting:  newWaitSet(),
		maxTasks: cfg.MaxTasks,
		clock:    NewMonotonicClock(),
	}
	s.timers = newTimerQueue(cfg.TimerCapacity, cfg.TimerLimit, func(slot uint32, pos int) {
		s.arena.at(slot).heapIndex = pos
	})
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Destroy marks the scheduler unusable. It refuses while any task is still
// registered, so owned state is never dropped silently.
func (s *Scheduler) Destroy() error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.destroyed {
		return ErrInvalidState
	}
	if n := s.arena.len(); n > 0 {
		return fmt.Errorf("destroy with %d tasks registered: %w", n, ErrBusy)
	}
	s.destroyed = true
	return nil
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	if s == nil {
		return 0
	}
	return s.arena.len()
}

// Register adds a runnable task that owns state. It joins the tail of the
// run queue, so a task registered from inside another task's step first
// runs on the next cycle.
func (s *Scheduler) Register(work Work, state any) (TaskID, error) {
	if s == nil || work == nil {
		return 0, ErrInvalidArgument
	}
	if s.destroyed {
		return 0, ErrInvalidState
	}
	if s.maxTasks > 0 && s.arena.len() >= s.maxTasks {
		s.logf(LevelWarn, "task list is full, can not add more tasks (%d)", s.arena.len())
		return 0, ErrCapacity
	}
	if st, ok := work.(Starter); ok {
		if err := st.Start(state); err != nil {
			return 0, fmt.Errorf("start task: %w", err)
		}
	}

	id := s.arena.alloc()
	t := s.arena.get(id)
	t.work = work
	t.state = state
	t.status = Runnable
	s.runq.push(id)

	s.metrics.taskAdded(s.arena.len())
	s.logf(LevelDebug, "task %s registered", id)
	s.emit(EventTaskCreated, id, nil)
	return id, nil
}

// State reports the scheduling state of a registered task.
func (s *Scheduler) State(id TaskID) (State, error) {
	if s == nil {
		return 0, ErrInvalidArgument
	}
	t := s.arena.get(id)
	if t == nil {
		return 0, ErrInvalidArgument
	}
	return t.status, nil
}

// SetWaiter registers the wait abstraction. A nil w falls back to a plain
// timed block on the clock. Swapping is refused while tasks wait on the
// current waiter.
func (s *Scheduler) SetWaiter(w Waiter, data any) error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.destroyed {
		return ErrInvalidState
	}
	if n := s.waiting.len(); n > 0 {
		return fmt.Errorf("%d tasks waiting on events: %w", n, ErrBusy)
	}
	s.waiter = w
	s.waiterData = data
	return nil
}

// Cancel removes a task from outside its own turn, taking it out of
// whichever queue holds it. It is rejected while any task is executing;
// a task ends itself with Exit.
func (s *Scheduler) Cancel(id TaskID) error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.current != 0 {
		return ErrInvalidState
	}
	t := s.arena.get(id)
	if t == nil {
		return ErrInvalidArgument
	}

	switch t.status {
	case Sleeping:
		if _, err := s.timers.remove(t.heapIndex); err != nil {
			return fmt.Errorf("cancel task %s: %w", id, err)
		}
		s.metrics.TimerCancellations++
	case WaitingEvent:
		s.waiting.remove(id)
		s.unwatch(id)
	case Runnable:
		s.runq.remove(id)
	}

	s.release(id, EventTaskCancelled)
	return nil
}

// Wake moves a task parked in WaitingEvent back to the run queue, recording
// the readiness that fired and dropping its registration with the waiter.
// Waiters call it from Wait; it is rejected while any task is executing and
// never touches a task in any other state.
func (s *Scheduler) Wake(id TaskID, events IOEvents) error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.current != 0 {
		return ErrInvalidState
	}
	t := s.arena.get(id)
	if t == nil {
		return ErrInvalidArgument
	}
	if t.status != WaitingEvent || !s.waiting.has(id) {
		return ErrNotWaiting
	}
	s.waiting.remove(id)
	s.unwatch(id)
	t.status = Runnable
	t.fd = -1
	t.events = events
	s.runq.push(id)
	return nil
}

// Run drives the loop until no task is runnable, sleeping or waiting.
// Each cycle runs three phases: the tasks queued at its start, expired
// timers, then (only when nothing is runnable) the wait abstraction.
func (s *Scheduler) Run() error {
	if s == nil {
		return ErrInvalidArgument
	}
	if s.destroyed || s.running {
		return ErrInvalidState
	}
	if s.arena.len() == 0 {
		s.logf(LevelWarn, "run called with zero tasks")
		return nil
	}

	s.running = true
	s.current = 0
	defer func() { s.running = false }()

	s.logf(LevelInfo, "scheduler loop started with %d tasks", s.arena.len())
	s.emit(EventLoopStart, 0, nil)

	for s.runq.len() > 0 || s.timers.len() > 0 || s.waiting.len() > 0 {
		s.cycle++
		s.metrics.Cycles++

		// 1) run phase
		s.runPhase()

		// 2) timer-reap phase
		s.reapTimers()

		// 3) wait phase
		if err := s.waitPhase(); err != nil {
			s.logf(LevelError, "wait failed on cycle %d: %v", s.cycle, err)
			s.emit(EventWaitError, 0, err)
			return fmt.Errorf("wait phase: %w", err)
		}
	}

	s.logf(LevelInfo, "scheduler loop stopped after %d cycles", s.cycle)
	s.emit(EventLoopStop, 0, nil)
	return nil
}

// runPhase drains only the tasks queued when it starts; anything queued
// meanwhile (yields, registrations) waits for the next cycle.
func (s *Scheduler) runPhase() {
	n := s.runq.len()
	for i := 0; i < n; i++ {
		id, ok := s.runq.pop()
		if !ok {
			return
		}
		t := s.arena.get(id)
		if t == nil {
			continue
		}

		work, state := t.work, t.state
		s.current = id
		s.req = request{next: Runnable, fd: -1}
		s.exiting = false
		s.ready = t.events
		t.events = 0

		start := s.clock.Now()
		work.Step(s, state)
		elapsed := time.Duration(s.clock.Now() - start)

		s.current = 0
		s.ready = 0
		s.metrics.recordExec(elapsed)
		s.apply(id)
	}
}

// apply performs the transition the task requested during its turn.
// Registrations made by the step may have grown the arena, so the record
// is looked up again.
func (s *Scheduler) apply(id TaskID) {
	req := s.req
	s.req = request{}

	t := s.arena.get(id)
	if t == nil {
		return
	}
	switch req.next {
	case Exited:
		s.release(id, EventTaskExit)
	case Sleeping:
		t.status = Sleeping
		t.wake = req.wake
		seq, err := s.timers.insert(id.slot(), req.wake)
		if err != nil {
			// SleepFor reserved the slot, so this only happens if the
			// limit was lowered underneath us; keep the task schedulable
			s.logf(LevelError, "task %s could not sleep: %v", id, err)
			t.status = Runnable
			s.runq.push(id)
			return
		}
		t.seq = seq
	case WaitingEvent:
		t.status = WaitingEvent
		t.fd = req.fd
		s.waiting.add(id)
	default:
		t.status = Runnable
		s.runq.push(id)
	}
}

// unwatch drops the waiter's registration for id, if it still holds one.
func (s *Scheduler) unwatch(id TaskID) {
	w, ok := s.waiter.(Watcher)
	if !ok {
		return
	}
	if err := w.Unwatch(id); err != nil && !errors.Is(err, ErrNotWatched) {
		s.logf(LevelWarn, "unwatch task %s: %v", id, err)
	}
}

// release drops the record and runs the cleanup hook, if any.
func (s *Scheduler) release(id TaskID, kind EventKind) {
	t := s.arena.get(id)
	if t == nil {
		return
	}
	work, state := t.work, t.state
	t.status = Exited
	s.arena.release(id)
	s.metrics.taskRemoved(s.arena.len(), kind == EventTaskExit)

	if c, ok := work.(Cleaner); ok {
		c.Cleanup(state)
	}

	if kind == EventTaskExit {
		s.logf(LevelDebug, "task %s exited", id)
	} else {
		s.logf(LevelDebug, "task %s cancelled", id)
	}
	s.emit(kind, id, nil)
}

func (s *Scheduler) reapTimers() {
	now := s.clock.Now()
	for {
		e, ok := s.timers.peekMin()
		if !ok || e.when > now {
			return
		}
		s.timers.popMin()

		t := s.arena.at(e.slot)
		t.status = Runnable
		s.runq.push(t.id)
		s.metrics.TimerExpirations++

		s.logf(LevelTrace, "timer expired for task %s, late by %s", t.id, time.Duration(now-e.when))
		s.emit(EventTimerExpired, t.id, nil)
	}
}

// waitPhase blocks until the earliest timer is due or, with no timers, until
// a waiting task becomes ready. It is skipped while anything is runnable.
func (s *Scheduler) waitPhase() error {
	if s.runq.len() > 0 {
		return nil
	}
	if s.timers.len() == 0 && s.waiting.len() == 0 {
		return nil
	}

	timeout := BlockForever
	start := s.clock.Now()
	if e, ok := s.timers.peekMin(); ok {
		timeout = 0
		if d := e.when - start; d > 0 {
			timeout = time.Duration(d)
		}
	}

	var (
		n   int
		err error
	)
	s.metrics.WaitCalls++
	if s.waiter == nil {
		s.clock.Sleep(timeout)
	} else {
		n, err = s.waiter.Wait(s, timeout, s.waiterData)
	}
	s.metrics.WaitTime += time.Duration(s.clock.Now() - start)

	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			s.logf(LevelDebug, "wait interrupted, retrying")
			s.emit(EventWaitInterrupted, 0, nil)
			return nil
		}
		return err
	}
	if n > 0 {
		s.metrics.EventsServiced += uint64(n)
	}
	return nil
}
