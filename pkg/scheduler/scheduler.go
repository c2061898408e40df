// Package scheduler runs a task after a delay. The returned Job can be
// canceled, and reports when it is due and whether it ran.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"
)

// A Task is executed by the scheduler when the wait time has passed.
type Task interface {
	Run(ctx context.Context) error
}

// RunFunc adapts a plain function to the Task interface.
type RunFunc func(ctx context.Context) error

// Run calls f.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

type state int

const (
	stateScheduled state = iota
	stateCanceled
	stateCompleted
	stateFailed
)

// A Job is a task scheduled to run at a point in the future.
type Job struct {
	task   Task
	cancel context.CancelFunc
	due    time.Time
	err    error
	state  state
	lock   sync.RWMutex
}

// Schedule creates a Job that runs task once waitTime has passed. Canceling
// ctx abandons the job without running it.
func Schedule(ctx context.Context, task Task, waitTime time.Duration) *Job {
	subCtx, cancel := context.WithCancel(ctx)
	j := Job{
		task:   task,
		cancel: cancel,
		due:    time.Now().Add(waitTime),
	}
	go j.wait(subCtx, waitTime)
	return &j
}

func (j *Job) wait(ctx context.Context, waitTime time.Duration) {
	timer := time.NewTimer(waitTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		j.setState(stateCanceled, nil)
	case <-timer.C:
		if err := j.task.Run(ctx); err == nil {
			j.setState(stateCompleted, nil)
		} else {
			j.setState(stateFailed, err)
		}
	}
}

// Cancel abandons a scheduled job. Canceling a job that already ran has no effect.
func (j *Job) Cancel() {
	j.cancel()
}

// Due returns the time at which the job is (or was) due to run.
func (j *Job) Due() time.Time {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.due
}

// Result reports whether the job has finished, and the task's error if it ran.
// A canceled job counts as finished with a nil error.
func (j *Job) Result() (bool, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	switch j.state {
	case stateCanceled, stateCompleted:
		return true, nil
	case stateFailed:
		return true, j.err
	default:
		return false, nil
	}
}

// ErrCanceled is returned by tasks that detect their context was canceled mid-run.
var ErrCanceled = errors.New("job canceled")

func (j *Job) setState(s state, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	if j.state == stateScheduled {
		j.state = s
		j.err = err
	}
}
