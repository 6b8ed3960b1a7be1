package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"majjen/internal/sched"
)

// PipeWriter writes Lines numbered lines into a pipe, sleeping Interval
// between them, and closes its end when done.
type PipeWriter struct {
	W        *os.File
	Lines    int
	Interval time.Duration

	written int
}

func (p *PipeWriter) Step(s *sched.Scheduler, _ any) {
	if p.written >= p.Lines {
		_ = s.Exit()
		return
	}
	p.written++
	if _, err := fmt.Fprintf(p.W, "line %d\n", p.written); err != nil {
		_ = s.Exit()
		return
	}
	_ = s.SleepFor(p.Interval)
}

func (p *PipeWriter) Cleanup(any) { _ = p.W.Close() }

// Written returns the number of lines sent so far.
func (p *PipeWriter) Written() int { return p.written }

// PipeReader parks on the read end of a pipe until it is readable, and
// exits once the writer hangs up.
type PipeReader struct {
	R   *os.File
	Out io.Writer

	fd    int
	lines int
	buf   [512]byte
}

func (p *PipeReader) Start(any) error {
	if p.R == nil {
		return errors.New("pipe reader: no file")
	}
	p.fd = int(p.R.Fd())
	return nil
}

func (p *PipeReader) Step(s *sched.Scheduler, _ any) {
	if s.Ready() == 0 {
		if err := s.WaitForEvent(p.fd, sched.EventRead); err != nil {
			if p.Out != nil {
				fmt.Fprintf(p.Out, "pipe reader: %v\n", err)
			}
			_ = s.Exit()
		}
		return
	}

	n, err := p.R.Read(p.buf[:])
	for _, b := range p.buf[:n] {
		if b == '\n' {
			p.lines++
		}
	}
	if p.Out != nil && n > 0 {
		fmt.Fprintf(p.Out, "read %q\n", p.buf[:n])
	}
	if err != nil || n == 0 {
		_ = s.Exit()
		return
	}
	_ = s.WaitForEvent(p.fd, sched.EventRead)
}

func (p *PipeReader) Cleanup(any) { _ = p.R.Close() }

// Lines returns the number of complete lines received.
func (p *PipeReader) Lines() int { return p.lines }

// NewPipePair creates a pipe and the two tasks on either end of it.
func NewPipePair(lines int, interval time.Duration, out io.Writer) (*PipeWriter, *PipeReader, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return &PipeWriter{W: w, Lines: lines, Interval: interval}, &PipeReader{R: r, Out: out}, nil
}
