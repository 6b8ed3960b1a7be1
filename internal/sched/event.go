// internal/sched/event.go

package sched

// EventKind represents the type of scheduler event.
type EventKind int

const (
	EventLoopStart EventKind = iota
	EventLoopStop
	EventTaskCreated
	EventTaskExit
	EventTaskCancelled
	EventTimerExpired
	EventWaitInterrupted
	EventWaitError
)

// Event is emitted synchronously, on the loop's goroutine, at each
// instrumentation point.
type Event struct {
	Time  int64 // monotonic ns, from the scheduler's clock
	Kind  EventKind
	Task  TaskID
	Cycle uint64
	Err   error
}

func (k EventKind) String() string {
	switch k {
	case EventLoopStart:
		return "LoopStart"
	case EventLoopStop:
		return "LoopStop"
	case EventTaskCreated:
		return "TaskCreated"
	case EventTaskExit:
		return "TaskExit"
	case EventTaskCancelled:
		return "TaskCancelled"
	case EventTimerExpired:
		return "TimerExpired"
	case EventWaitInterrupted:
		return "WaitInterrupted"
	case EventWaitError:
		return "WaitError"
	default:
		return "Unknown"
	}
}

// SetEventHook installs fn to receive scheduler events. The hook must not
// call back into the scheduler.
func (s *Scheduler) SetEventHook(fn func(Event)) {
	if s == nil {
		return
	}
	s.hook = fn
}

func (s *Scheduler) emit(kind EventKind, id TaskID, err error) {
	if s.hook == nil {
		return
	}
	s.hook(Event{
		Time:  s.clock.Now(),
		Kind:  kind,
		Task:  id,
		Cycle: s.cycle,
		Err:   err,
	})
}
