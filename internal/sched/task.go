// internal/sched/task.go

package sched

import "fmt"

// TaskID identifies a registered task. The low 32 bits hold the arena slot,
// the high 32 bits the slot generation, so a handle to a released task never
// aliases the task that reuses its slot. The zero value is never valid.
type TaskID uint64

func makeTaskID(slot, gen uint32) TaskID { return TaskID(uint64(gen)<<32 | uint64(slot)) }

func (id TaskID) slot() uint32 { return uint32(id) }
func (id TaskID) gen() uint32  { return uint32(id >> 32) }

func (id TaskID) String() string {
	return fmt.Sprintf("%d.%d", id.slot(), id.gen())
}

// State is the scheduling state of a task.
type State uint8

const (
	Runnable State = iota
	Sleeping
	WaitingEvent
	Exited
)

func (st State) String() string {
	switch st {
	case Runnable:
		return "Runnable"
	case Sleeping:
		return "Sleeping"
	case WaitingEvent:
		return "WaitingEvent"
	case Exited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// Work executes one cooperative step of a task. It must return promptly;
// the loop cannot interrupt it.
type Work interface {
	Step(s *Scheduler, state any)
}

// WorkFunc adapts a plain function to Work.
type WorkFunc func(s *Scheduler, state any)

func (f WorkFunc) Step(s *Scheduler, state any) { f(s, state) }

// Starter is implemented by work that needs to set up its state once,
// before the task becomes runnable. A non-nil error aborts registration.
type Starter interface {
	Start(state any) error
}

// Cleaner is implemented by work that owns resources in its state.
// Cleanup runs once, when the task record is released.
type Cleaner interface {
	Cleanup(state any)
}

// Task is one unit of cooperative work, stored by value in the arena.
type Task struct {
	id     TaskID
	work   Work
	state  any
	status State

	wake      int64  // monotonic ns, valid while Sleeping
	seq       uint64 // timer insertion order, valid while Sleeping
	heapIndex int    // position in the timer queue, -1 otherwise

	fd     int // valid while WaitingEvent
	events IOEvents

	used bool
}

// request is the transition a task asked for during its own turn.
type request struct {
	next   State
	wake   int64 // monotonic ns, for Sleeping
	fd     int
	events IOEvents
}
