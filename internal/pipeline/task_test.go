package pipeline

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWaitReturnsError(t *testing.T) {
	want := errors.New("boom")
	task := Go(func() error { return want })
	assert.Equal(t, want, task.Wait())
	assert.True(t, task.Done())
}

func TestTaskDoneNonBlocking(t *testing.T) {
	release := make(chan struct{})
	task := Go(func() error {
		<-release
		return nil
	})

	assert.False(t, task.Done())
	close(release)
	require.NoError(t, task.Wait())
	assert.True(t, task.Done())
}

func TestTaskWaitWithProgressTicks(t *testing.T) {
	release := make(chan struct{})
	var ticks atomic.Int32

	task := Go(func() error {
		<-release
		return nil
	})
	go func() {
		for ticks.Load() < 2 {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()

	err := task.WaitWithProgress(5*time.Millisecond, func() {
		ticks.Add(1)
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ticks.Load(), int32(2))
}

func TestTaskWaitWithProgressFastCompletion(t *testing.T) {
	task := Go(func() error { return nil })
	err := task.WaitWithProgress(time.Hour, func() {
		t.Fatal("tick must not fire for an already-finished task")
	})
	assert.NoError(t, err)
}
