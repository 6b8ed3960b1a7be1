package job

import (
	"errors"
	"fmt"
	"io"
	"time"

	"majjen/internal/sched"
)

// CounterState is the state owned by one counter task.
type CounterState struct {
	CountTo int
	Count   int
	Done    bool
}

// Counter counts from 1 to CountTo, one increment per turn, sleeping
// cooperatively for Pause between increments, then removes itself.
type Counter struct {
	Out   io.Writer
	Pause time.Duration
}

// NewCounterState returns a fresh state counting to n.
func NewCounterState(n int) *CounterState {
	return &CounterState{CountTo: n}
}

func (c Counter) Start(state any) error {
	st, ok := state.(*CounterState)
	if !ok {
		return fmt.Errorf("counter: unexpected state %T", state)
	}
	if st.CountTo <= 0 {
		return errors.New("counter: count must be positive")
	}
	st.Count = 0
	return nil
}

func (c Counter) Step(s *sched.Scheduler, state any) {
	st := state.(*CounterState)

	// base case, check if done
	if st.Count >= st.CountTo {
		c.printf("Counting to %d (%d) DONE, removing self\n", st.CountTo, st.Count)
		_ = s.Exit()
		return
	}

	st.Count++
	c.printf("Counting to %d (%d)\n", st.CountTo, st.Count)

	if c.Pause > 0 {
		if err := s.SleepFor(c.Pause); err != nil {
			// no room on the timer queue; try again next cycle
			_ = s.Yield()
		}
	}
}

func (c Counter) Cleanup(state any) {
	state.(*CounterState).Done = true
}

func (c Counter) printf(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}
