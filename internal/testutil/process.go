package testutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// FakeProcess is a recognizer process that never runs anything. It counts
// stop requests and exits when Exit or the first Stop is called.
type FakeProcess struct {
	pid    int
	output []string

	done     chan struct{}
	exitOnce sync.Once
	stops    atomic.Int32
	streamed atomic.Bool
}

// NewFakeProcess creates a running FakeProcess that prints output when streamed.
func NewFakeProcess(pid int, output ...string) *FakeProcess {
	return &FakeProcess{
		pid:    pid,
		output: output,
		done:   make(chan struct{}),
	}
}

// PID returns the fake process id.
func (p *FakeProcess) PID() int { return p.pid }

// StreamOutput delivers the configured output lines on a new goroutine.
func (p *FakeProcess) StreamOutput(onLine func(string)) {
	if p.streamed.Swap(true) {
		return
	}
	go func() {
		for _, line := range p.output {
			onLine(line)
		}
	}()
}

// Done is closed once the process has exited.
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

// Stop records the request and marks the process as exited.
func (p *FakeProcess) Stop(time.Duration) error {
	p.stops.Add(1)
	p.Exit()
	return nil
}

// Exit simulates the process exiting on its own.
func (p *FakeProcess) Exit() {
	p.exitOnce.Do(func() { close(p.done) })
}

// Stops returns how many times Stop was called.
func (p *FakeProcess) Stops() int {
	return int(p.stops.Load())
}
