package sched

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *ManualClock) {
	t.Helper()
	clk := &ManualClock{}
	cfg := DefaultConfig()
	s := New(cfg, append([]Option{WithClock(clk)}, opts...)...)
	return s, clk
}

// counter exits on its limit-th invocation.
type counter struct {
	runs  int
	limit int
}

func countTo(s *Scheduler, state any) {
	c := state.(*counter)
	c.runs++
	if c.runs >= c.limit {
		_ = s.Exit()
	}
}

func TestRun_ExitingTasksTerminate(t *testing.T) {
	s, _ := newTestScheduler(t)
	states := make([]*counter, 3)
	for i := range states {
		states[i] = &counter{limit: 5}
		_, err := s.Register(WorkFunc(countTo), states[i])
		require.NoError(t, err)
	}

	require.NoError(t, s.Run())

	m := s.Metrics()
	assert.Equal(t, uint64(15), m.TaskExecutions)
	assert.Equal(t, uint64(3), m.TasksExited)
	assert.Equal(t, uint64(3), m.TasksCreated)
	assert.Equal(t, uint64(5), m.Cycles)
	assert.Zero(t, m.TimerExpirations)
	assert.Zero(t, m.WaitCalls)
	assert.Zero(t, m.TasksActive)
	assert.Equal(t, 3, m.TasksPeak)
	for _, c := range states {
		assert.Equal(t, 5, c.runs)
	}
	assert.Zero(t, s.Len())
}

func TestRun_MetricsCountEveryExecution(t *testing.T) {
	for _, tc := range []struct{ n, k int }{{1, 1}, {4, 3}, {10, 7}} {
		t.Run(fmt.Sprintf("n=%d,k=%d", tc.n, tc.k), func(t *testing.T) {
			s, _ := newTestScheduler(t)
			for i := 0; i < tc.n; i++ {
				_, err := s.Register(WorkFunc(countTo), &counter{limit: tc.k})
				require.NoError(t, err)
			}
			require.NoError(t, s.Run())
			m := s.Metrics()
			assert.Equal(t, uint64(tc.n*tc.k), m.TaskExecutions)
			assert.Equal(t, uint64(tc.n), m.TasksExited)
		})
	}
}

func TestRun_ZeroTasksReturnsImmediately(t *testing.T) {
	s, _ := newTestScheduler(t)
	var levels []Level
	s.SetLogger(func(l Level, _ string, _ any) { levels = append(levels, l) }, LevelTrace, nil)
	require.NoError(t, s.Run())
	assert.Equal(t, []Level{LevelWarn}, levels)
	assert.Zero(t, s.Metrics().Cycles)
}

func TestRun_YieldAndRegistrationJoinNextCycle(t *testing.T) {
	s, _ := newTestScheduler(t)
	var order []string

	var c WorkFunc = func(s *Scheduler, _ any) {
		order = append(order, "C")
		_ = s.Exit()
	}
	runs := map[string]int{}
	step := func(name string) WorkFunc {
		return func(s *Scheduler, _ any) {
			order = append(order, name)
			runs[name]++
			if runs[name] == 2 {
				_ = s.Exit()
				return
			}
			if name == "A" {
				_, err := s.Register(c, nil)
				require.NoError(t, err)
			}
			_ = s.Yield()
		}
	}
	_, _ = s.Register(step("A"), nil)
	_, _ = s.Register(step("B"), nil)

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"A", "B", "C", "A", "B"}, order)
	assert.Equal(t, uint64(2), s.Metrics().Cycles)
}

func TestRun_ReturningWithoutRequestRequeues(t *testing.T) {
	s, _ := newTestScheduler(t)
	n := 0
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		n++
		if n == 3 {
			_ = s.Exit()
		}
	}), nil)
	require.NoError(t, s.Run())
	assert.Equal(t, 3, n)
}

func TestSleep_WakesAtFirstReapAfterDeadline(t *testing.T) {
	clk := &ManualClock{}
	clk.Advance(time.Second)
	ticks := WaitFunc(func(_ *Scheduler, _ time.Duration, _ any) (int, error) {
		clk.Advance(time.Millisecond)
		return 0, nil
	})
	s := New(DefaultConfig(), WithClock(clk), WithWaiter(ticks, nil))

	const d = 10 * time.Millisecond
	var issued, woke int64
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if issued == 0 {
			issued = clk.Now()
			require.NoError(t, s.SleepFor(d))
			return
		}
		woke = clk.Now()
		_ = s.Exit()
	}), nil)

	require.NoError(t, s.Run())
	assert.Equal(t, issued+int64(d), woke)
	m := s.Metrics()
	assert.Equal(t, uint64(1), m.TimerExpirations)
	assert.Equal(t, uint64(10), m.WaitCalls)
}

func TestSleep_HugeDurationSaturates(t *testing.T) {
	s, clk := newTestScheduler(t)
	clk.Advance(time.Second)

	ran := false
	id, _ := s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if ran {
			t.Fatal("woke from an unbounded sleep")
		}
		ran = true
		require.NoError(t, s.SleepFor(math.MaxInt64))
	}), nil)

	var timeouts []time.Duration
	require.NoError(t, s.SetWaiter(WaitFunc(func(s *Scheduler, timeout time.Duration, _ any) (int, error) {
		timeouts = append(timeouts, timeout)
		e, ok := s.timers.peekMin()
		require.True(t, ok)
		assert.Equal(t, int64(math.MaxInt64), e.when)
		require.NoError(t, s.Cancel(id))
		return 0, nil
	}), nil))

	require.NoError(t, s.Run())
	require.Len(t, timeouts, 1)
	assert.Equal(t, time.Duration(math.MaxInt64-int64(time.Second)), timeouts[0])
	assert.Zero(t, s.Metrics().TimerExpirations)
	assert.Equal(t, uint64(1), s.Metrics().TimerCancellations)
}

func TestSleep_NeverWakesEarly(t *testing.T) {
	s, clk := newTestScheduler(t)
	durations := []time.Duration{7 * time.Millisecond, time.Millisecond, 0, 3 * time.Second}
	for _, d := range durations {
		d := d
		var issued int64 = -1
		_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
			if issued < 0 {
				issued = clk.Now()
				require.NoError(t, s.SleepFor(d))
				return
			}
			assert.GreaterOrEqual(t, clk.Now(), issued+int64(d))
			_ = s.Exit()
		}), nil)
	}
	require.NoError(t, s.Run())
	assert.Equal(t, uint64(len(durations)), s.Metrics().TimerExpirations)
	// no waiter: the loop blocked on the clock itself
	assert.Positive(t, clk.Sleeps())
}

func TestSleep_MillisAndNanosAgree(t *testing.T) {
	s, _ := newTestScheduler(t)
	var ids []TaskID
	for _, ms := range []bool{true, false} {
		ms := ms
		id, _ := s.Register(WorkFunc(func(s *Scheduler, _ any) {
			if ms {
				require.NoError(t, s.SleepMillis(25))
			} else {
				require.NoError(t, s.SleepFor(time.Duration(25*1_000_000)))
			}
		}), nil)
		ids = append(ids, id)
	}

	s.runPhase()
	a, b := s.arena.get(ids[0]), s.arena.get(ids[1])
	require.Equal(t, Sleeping, a.status)
	require.Equal(t, Sleeping, b.status)
	assert.Equal(t, a.wake, b.wake)
}

func TestSleep_EqualWakeTimesKeepRegistrationOrder(t *testing.T) {
	s, _ := newTestScheduler(t)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		slept := false
		_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
			if !slept {
				slept = true
				_ = s.SleepFor(time.Second)
				return
			}
			order = append(order, i)
			_ = s.Exit()
		}), nil)
	}
	require.NoError(t, s.Run())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSleep_TimerLimitReportedToTask(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimerCapacity = 1
	cfg.TimerLimit = 1
	s := New(cfg, WithClock(&ManualClock{}))

	var errs []error
	for i := 0; i < 2; i++ {
		tried := false
		_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
			if tried {
				_ = s.Exit()
				return
			}
			tried = true
			errs = append(errs, s.SleepFor(time.Millisecond))
		}), nil)
	}
	require.NoError(t, s.Run())
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrTimerCapacity)
}

func TestCancel_SleepingTaskLeavesHeapIntact(t *testing.T) {
	s, clk := newTestScheduler(t)
	var (
		ids     []TaskID
		cleaned []int
	)
	for i := 0; i < 6; i++ {
		i := i
		id, _ := s.Register(&hookedWork{
			step: func(s *Scheduler, _ any) {
				if st, _ := s.State(s.Current()); st == Runnable && clk.Now() == 0 {
					_ = s.SleepFor(time.Duration(10-i) * time.Millisecond)
					return
				}
				_ = s.Exit()
			},
			cleanup: func(any) { cleaned = append(cleaned, i) },
		}, nil)
		ids = append(ids, id)
	}

	var cancelled bool
	require.NoError(t, s.SetWaiter(WaitFunc(func(s *Scheduler, timeout time.Duration, _ any) (int, error) {
		if !cancelled {
			cancelled = true
			before := s.timers.len()
			require.NoError(t, s.Cancel(ids[2]))
			assert.Equal(t, before-1, s.timers.len())
			for i, e := range s.timers.h.entries {
				assert.Equal(t, i, s.arena.at(e.slot).heapIndex)
				if i > 0 {
					assert.GreaterOrEqual(t, e.when, s.timers.h.entries[(i-1)/2].when)
				}
			}
			_, err := s.State(ids[2])
			assert.ErrorIs(t, err, ErrInvalidArgument)
		}
		clk.Sleep(timeout)
		return 0, nil
	}), nil))

	require.NoError(t, s.Run())
	m := s.Metrics()
	assert.Equal(t, uint64(1), m.TimerCancellations)
	assert.Equal(t, uint64(5), m.TasksExited)
	assert.Equal(t, uint64(5), m.TimerExpirations)
	assert.Len(t, cleaned, 6)
	assert.Equal(t, 2, cleaned[0])
}

func TestCancel_RunnableAndRejections(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, _ := s.Register(WorkFunc(countTo), &counter{limit: 1})
	other, _ := s.Register(WorkFunc(countTo), &counter{limit: 1})

	require.NoError(t, s.Cancel(id))
	assert.ErrorIs(t, s.Cancel(id), ErrInvalidArgument)
	assert.ErrorIs(t, s.Cancel(0), ErrInvalidArgument)
	assert.Equal(t, 1, s.Len())

	// a task may not remove another one during its turn
	var err error
	third, _ := s.Register(WorkFunc(func(s *Scheduler, _ any) {
		err = s.Cancel(other)
		_ = s.Exit()
	}), nil)
	require.NotZero(t, third)
	require.NoError(t, s.Run())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, uint64(2), s.Metrics().TasksExited)
}

func TestDestroy(t *testing.T) {
	s, _ := newTestScheduler(t)
	_, err := s.Register(WorkFunc(countTo), &counter{limit: 2})
	require.NoError(t, err)

	err = s.Destroy()
	require.ErrorIs(t, err, ErrBusy)

	// still usable after the refused destroy
	require.NoError(t, s.Run())
	assert.Equal(t, uint64(2), s.Metrics().TaskExecutions)

	require.NoError(t, s.Destroy())
	assert.ErrorIs(t, s.Destroy(), ErrInvalidState)
	assert.ErrorIs(t, s.Run(), ErrInvalidState)
	_, err = s.Register(WorkFunc(countTo), &counter{limit: 1})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNilScheduler(t *testing.T) {
	var s *Scheduler
	assert.ErrorIs(t, s.Run(), ErrInvalidArgument)
	assert.ErrorIs(t, s.Destroy(), ErrInvalidArgument)
	_, err := s.Register(WorkFunc(countTo), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, s.Yield(), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetWaiter(nil, nil), ErrInvalidArgument)
	assert.Equal(t, Metrics{}, s.Metrics())
	assert.Zero(t, s.Len())
}

func TestRegister_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTasks = 2
	s := New(cfg, WithClock(&ManualClock{}))

	_, err := s.Register(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	for i := 0; i < 2; i++ {
		_, err = s.Register(WorkFunc(countTo), &counter{limit: 1})
		require.NoError(t, err)
	}
	_, err = s.Register(WorkFunc(countTo), &counter{limit: 1})
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Run())
	_, err = s.Register(WorkFunc(countTo), &counter{limit: 1})
	assert.NoError(t, err)
}

func TestRegister_ReusesSlotsWithFreshIDs(t *testing.T) {
	s, _ := newTestScheduler(t)
	first, _ := s.Register(WorkFunc(countTo), &counter{limit: 1})
	require.NoError(t, s.Run())

	second, _ := s.Register(WorkFunc(countTo), &counter{limit: 1})
	assert.Equal(t, first.slot(), second.slot())
	assert.NotEqual(t, first, second)
	_, err := s.State(first)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	st, err := s.State(second)
	require.NoError(t, err)
	assert.Equal(t, Runnable, st)
}

type hookedWork struct {
	start   func(any) error
	step    func(*Scheduler, any)
	cleanup func(any)
}

func (h *hookedWork) Start(state any) error {
	if h.start == nil {
		return nil
	}
	return h.start(state)
}

func (h *hookedWork) Step(s *Scheduler, state any) { h.step(s, state) }

func (h *hookedWork) Cleanup(state any) {
	if h.cleanup != nil {
		h.cleanup(state)
	}
}

func TestRegister_StartAndCleanupHooks(t *testing.T) {
	s, _ := newTestScheduler(t)
	var started, cleaned []any

	_, err := s.Register(&hookedWork{
		start: func(any) error { return errors.New("no resources") },
		step:  func(*Scheduler, any) { t.Fatal("must not run") },
	}, "bad")
	require.Error(t, err)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.Metrics().TasksCreated)

	_, err = s.Register(&hookedWork{
		start:   func(st any) error { started = append(started, st); return nil },
		step:    func(s *Scheduler, _ any) { _ = s.Exit() },
		cleanup: func(st any) { cleaned = append(cleaned, st) },
	}, "good")
	require.NoError(t, err)
	require.NoError(t, s.Run())
	assert.Equal(t, []any{"good"}, started)
	assert.Equal(t, []any{"good"}, cleaned)
}

func TestSelfService_OutsideTurn(t *testing.T) {
	s, _ := newTestScheduler(t)
	assert.ErrorIs(t, s.Yield(), ErrNoCurrentTask)
	assert.ErrorIs(t, s.SleepFor(time.Second), ErrNoCurrentTask)
	assert.ErrorIs(t, s.WaitForEvent(0, EventRead), ErrNoCurrentTask)
	assert.ErrorIs(t, s.Exit(), ErrNoCurrentTask)
	assert.Zero(t, s.Current())
}

func TestSelfService_ExitIsFinal(t *testing.T) {
	s, _ := newTestScheduler(t)
	var errs []error
	var self TaskID
	id, _ := s.Register(WorkFunc(func(s *Scheduler, _ any) {
		self = s.Current()
		errs = append(errs, s.Exit(), s.Yield(), s.SleepFor(time.Second))
	}), nil)
	require.NoError(t, s.Run())
	assert.Equal(t, id, self)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], ErrExiting)
	assert.ErrorIs(t, errs[2], ErrExiting)
	assert.Equal(t, uint64(1), s.Metrics().TaskExecutions)
}

func TestSelfService_LastRequestWins(t *testing.T) {
	s, _ := newTestScheduler(t)
	n := 0
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		n++
		if n == 1 {
			_ = s.SleepFor(time.Hour)
			_ = s.Yield()
			return
		}
		_ = s.Exit()
	}), nil)
	require.NoError(t, s.Run())
	assert.Zero(t, s.Metrics().TimerExpirations)
	assert.Zero(t, s.Metrics().WaitCalls)
}

func TestWaitForEvent_RequiresWatcher(t *testing.T) {
	s, _ := newTestScheduler(t, WithWaiter(SleepWaiter{}, nil))
	var err error
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		err = s.WaitForEvent(3, EventRead)
		_ = s.Exit()
	}), nil)
	require.NoError(t, s.Run())
	assert.ErrorIs(t, err, ErrNoReadiness)
}

// fakeWatcher wakes every watched task on its next Wait.
type fakeWatcher struct {
	watched map[TaskID]int
	calls   int
}

func (f *fakeWatcher) Watch(id TaskID, fd int, _ IOEvents) error {
	f.watched[id] = fd
	return nil
}

func (f *fakeWatcher) Unwatch(id TaskID) error {
	if _, ok := f.watched[id]; !ok {
		return ErrNotWatched
	}
	delete(f.watched, id)
	return nil
}

func (f *fakeWatcher) Wait(s *Scheduler, timeout time.Duration, data any) (int, error) {
	f.calls++
	if timeout != BlockForever {
		return 0, fmt.Errorf("unexpected timeout %s", timeout)
	}
	if data != "ud" {
		return 0, fmt.Errorf("unexpected user data %v", data)
	}
	n := 0
	for id := range f.watched {
		delete(f.watched, id)
		if s.Wake(id, EventRead) == nil {
			n++
		}
	}
	return n, nil
}

func TestWaitForEvent_WakesThroughWaiter(t *testing.T) {
	w := &fakeWatcher{watched: map[TaskID]int{}}
	s, _ := newTestScheduler(t, WithWaiter(w, "ud"))

	var ready []IOEvents
	for i := 0; i < 3; i++ {
		waited := false
		_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
			if !waited {
				waited = true
				require.NoError(t, s.WaitForEvent(10+i, EventRead))
				return
			}
			ready = append(ready, s.Ready())
			_ = s.Exit()
		}), nil)
	}

	require.NoError(t, s.Run())
	assert.Equal(t, []IOEvents{EventRead, EventRead, EventRead}, ready)
	m := s.Metrics()
	assert.Equal(t, uint64(3), m.EventsServiced)
	assert.Equal(t, uint64(1), m.WaitCalls)
	assert.Equal(t, 1, w.calls)
}

func TestWaitForEvent_SupersededRegistrationIsDropped(t *testing.T) {
	w := &fakeWatcher{watched: map[TaskID]int{}}
	s, _ := newTestScheduler(t, WithWaiter(w, "ud"))
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		require.NoError(t, s.WaitForEvent(4, EventRead))
		_ = s.Exit()
	}), nil)
	require.NoError(t, s.Run())
	assert.Empty(t, w.watched)
	assert.Zero(t, w.calls)
}

func TestWake_RejectedDuringAnotherTasksTurn(t *testing.T) {
	w := &fakeWatcher{watched: map[TaskID]int{}}
	s, _ := newTestScheduler(t, WithWaiter(w, "ud"))

	parked, _ := s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if s.Ready() == 0 {
			require.NoError(t, s.WaitForEvent(9, EventRead))
			return
		}
		_ = s.Exit()
	}), nil)
	var wakeErr error
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		wakeErr = s.Wake(parked, EventRead)
		st, err := s.State(parked)
		require.NoError(t, err)
		assert.Equal(t, WaitingEvent, st)
		assert.Contains(t, w.watched, parked)
		_ = s.Exit()
	}), nil)

	require.NoError(t, s.Run())
	assert.ErrorIs(t, wakeErr, ErrInvalidState)
	assert.Equal(t, 1, w.calls)
	assert.Empty(t, w.watched)
}

func TestCancel_WaitingTaskLeavesWatcher(t *testing.T) {
	w := &fakeWatcher{watched: map[TaskID]int{}}
	s, _ := newTestScheduler(t, WithWaiter(w, "ud"))

	cleaned := false
	id, _ := s.Register(&hookedWork{
		step: func(s *Scheduler, _ any) {
			require.NoError(t, s.WaitForEvent(9, EventRead))
		},
		cleanup: func(any) { cleaned = true },
	}, nil)

	s.runPhase()
	require.Contains(t, w.watched, id)
	st, err := s.State(id)
	require.NoError(t, err)
	require.Equal(t, WaitingEvent, st)

	require.NoError(t, s.Cancel(id))
	assert.NotContains(t, w.watched, id)
	assert.Zero(t, s.waiting.len())
	_, err = s.State(id)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.True(t, cleaned)

	require.NoError(t, s.Run())
	assert.Zero(t, w.calls)
	assert.Zero(t, s.Len())
}

func TestWake_OnlyWaitingTasks(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, _ := s.Register(WorkFunc(countTo), &counter{limit: 1})
	assert.ErrorIs(t, s.Wake(id, EventRead), ErrNotWaiting)
	assert.ErrorIs(t, s.Wake(0, EventRead), ErrInvalidArgument)
	st, _ := s.State(id)
	assert.Equal(t, Runnable, st)
}

func TestSetWaiter_BusyWhileTasksWait(t *testing.T) {
	w := &fakeWatcher{watched: map[TaskID]int{}}
	s, _ := newTestScheduler(t)
	require.NoError(t, s.SetWaiter(w, "ud"))

	var swapErr error
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if s.Ready() == 0 {
			_ = s.WaitForEvent(1, EventRead)
			return
		}
		_ = s.Exit()
	}), nil)
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		swapErr = s.SetWaiter(nil, nil)
		_ = s.Exit()
	}), nil)
	require.NoError(t, s.Run())
	// the first task's wait is applied before the second task runs
	assert.ErrorIs(t, swapErr, ErrBusy)
}

func TestWait_InterruptedIsRetried(t *testing.T) {
	s, clk := newTestScheduler(t)
	calls := 0
	var events []EventKind
	s.SetEventHook(func(e Event) { events = append(events, e.Kind) })
	require.NoError(t, s.SetWaiter(WaitFunc(func(_ *Scheduler, timeout time.Duration, _ any) (int, error) {
		calls++
		if calls == 1 {
			return 0, ErrInterrupted
		}
		clk.Sleep(timeout)
		return 0, nil
	}), nil))

	slept := false
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if !slept {
			slept = true
			_ = s.SleepFor(5 * time.Millisecond)
			return
		}
		_ = s.Exit()
	}), nil)

	require.NoError(t, s.Run())
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(2), s.Metrics().WaitCalls)
	assert.Contains(t, events, EventWaitInterrupted)
	assert.NotContains(t, events, EventWaitError)
}

func TestWait_HardFailureAbortsRun(t *testing.T) {
	s, clk := newTestScheduler(t)
	boom := errors.New("boom")
	var logged []string
	s.SetLogger(func(l Level, msg string, _ any) {
		if l == LevelError {
			logged = append(logged, msg)
		}
	}, LevelInfo, nil)
	require.NoError(t, s.SetWaiter(WaitFunc(func(*Scheduler, time.Duration, any) (int, error) {
		return -1, boom
	}), nil))

	slept := false
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if !slept {
			slept = true
			_ = s.SleepFor(time.Millisecond)
			return
		}
		_ = s.Exit()
	}), nil)

	err := s.Run()
	require.ErrorIs(t, err, boom)
	assert.Len(t, logged, 1)
	assert.Equal(t, 1, s.Len())
	assert.ErrorIs(t, s.Destroy(), ErrBusy)

	// recover with the plain clock fallback
	require.NoError(t, s.SetWaiter(nil, nil))
	require.NoError(t, s.Run())
	assert.Zero(t, s.Len())
	assert.Equal(t, int64(time.Millisecond), clk.Now())
	require.NoError(t, s.Destroy())
}

func TestRun_RejectsReentry(t *testing.T) {
	s, _ := newTestScheduler(t)
	var err error
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		err = s.Run()
		_ = s.Exit()
	}), nil)
	require.NoError(t, s.Run())
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMetrics_ResetKeepsActiveCount(t *testing.T) {
	s, _ := newTestScheduler(t)
	_, _ = s.Register(WorkFunc(countTo), &counter{limit: 1})
	_, _ = s.Register(WorkFunc(countTo), &counter{limit: 1})
	s.ResetMetrics()
	assert.Equal(t, Metrics{TasksActive: 2, TasksPeak: 2}, s.Metrics())

	require.NoError(t, s.Run())
	snap := s.Metrics()
	assert.Equal(t, uint64(2), snap.TaskExecutions)
	assert.Zero(t, snap.TasksCreated)
	assert.Equal(t, uint64(2), snap.TasksExited)

	s.ResetMetrics()
	assert.Equal(t, Metrics{}, s.Metrics())
	// snapshots are copies
	assert.Equal(t, uint64(2), snap.TaskExecutions)
}

func TestMetrics_ExecTimes(t *testing.T) {
	s, clk := newTestScheduler(t)
	for _, d := range []time.Duration{3 * time.Millisecond, time.Millisecond, 5 * time.Millisecond} {
		d := d
		_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
			clk.Advance(d)
			_ = s.Exit()
		}), nil)
	}
	require.NoError(t, s.Run())
	m := s.Metrics()
	assert.Equal(t, time.Millisecond, m.ExecMin)
	assert.Equal(t, 5*time.Millisecond, m.ExecMax)
	assert.Equal(t, 9*time.Millisecond, m.ExecTotal)
	assert.Equal(t, 3*time.Millisecond, m.ExecAvg())
}

func TestLogger_FiltersByLevel(t *testing.T) {
	s, _ := newTestScheduler(t)
	var got []Level
	var data []any
	s.SetLogger(func(l Level, _ string, d any) {
		got = append(got, l)
		data = append(data, d)
	}, LevelInfo, "run-1")
	_, _ = s.Register(WorkFunc(countTo), &counter{limit: 1})
	require.NoError(t, s.Run())

	assert.Equal(t, []Level{LevelInfo, LevelInfo}, got)
	assert.Equal(t, []any{"run-1", "run-1"}, data)

	got = nil
	s.SetLogger(func(l Level, _ string, _ any) { got = append(got, l) }, LevelSilent, nil)
	_, _ = s.Register(WorkFunc(countTo), &counter{limit: 1})
	require.NoError(t, s.Run())
	assert.Empty(t, got)

	// nil callback is a legal no-op configuration
	s.SetLogger(nil, LevelTrace, nil)
	_, _ = s.Register(WorkFunc(countTo), &counter{limit: 1})
	require.NoError(t, s.Run())
}

func TestEventHook_Sequence(t *testing.T) {
	s, _ := newTestScheduler(t)
	var kinds []EventKind
	s.SetEventHook(func(e Event) { kinds = append(kinds, e.Kind) })

	slept := false
	_, _ = s.Register(WorkFunc(func(s *Scheduler, _ any) {
		if !slept {
			slept = true
			_ = s.SleepFor(time.Millisecond)
			return
		}
		_ = s.Exit()
	}), nil)
	require.NoError(t, s.Run())
	assert.Equal(t, []EventKind{
		EventTaskCreated,
		EventLoopStart,
		EventTimerExpired,
		EventTaskExit,
		EventLoopStop,
	}, kinds)
}
