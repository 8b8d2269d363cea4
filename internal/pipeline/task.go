package pipeline

import (
	"time"
)

// Task is a unit of background work started exactly once. The three
// execution shapes map onto it directly: call the function inline for
// synchronous runs, start a Task and never wait for detached runs, or
// start one and WaitWithProgress for polling runs. Tasks cannot be
// cancelled mid-call; completion is observed, not forced.
type Task struct {
	done chan struct{}
	err  error
}

// Go starts fn on its own goroutine and returns the running task.
func Go(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = fn()
	}()
	return t
}

// Done reports completion without blocking.
func (t *Task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task finishes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// WaitWithProgress blocks until the task finishes, invoking onTick at
// each interval while still running. Used to report liveness during
// long generation calls without blocking silently.
func (t *Task) WaitWithProgress(interval time.Duration, onTick func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return t.err
		case <-ticker.C:
			onTick()
		}
	}
}
