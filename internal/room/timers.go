package room

import (
	"context"
	"time"

	"github.com/automolid/automolid/pkg/scheduler"
)

type timerKind int

const (
	offTimer timerKind = iota
	warningTimer
	boundaryTimer
	midnightTimer
)

func (k timerKind) String() string {
	switch k {
	case offTimer:
		return "off"
	case warningTimer:
		return "warning"
	case boundaryTimer:
		return "boundary"
	case midnightTimer:
		return "midnight"
	default:
		return "unknown"
	}
}

type timerFired struct {
	kind timerKind
	id   uint64
}

// timers owns a room's scheduled callbacks. Fires are fed back into the
// room's event loop through the fired channel; every arm or cancel bumps the
// kind's id so a stale fire is detected and ignored.
type timers struct {
	fired chan timerFired
	jobs  map[timerKind]*scheduler.Job
	ids   map[timerKind]uint64
}

func newTimers() *timers {
	return &timers{
		fired: make(chan timerFired, 8),
		jobs:  make(map[timerKind]*scheduler.Job),
		ids:   make(map[timerKind]uint64),
	}
}

// arm schedules a single fire after wait, replacing any live timer of the
// same kind. Re-arming always restarts the full wait.
func (t *timers) arm(ctx context.Context, kind timerKind, wait time.Duration) {
	t.cancel(kind)
	id := t.ids[kind]
	fired := t.fired
	t.jobs[kind] = scheduler.Schedule(ctx, scheduler.RunFunc(func(ctx context.Context) error {
		select {
		case fired <- timerFired{kind: kind, id: id}:
		case <-ctx.Done():
		}
		return nil
	}), wait)
}

// shorten re-arms kind only if that brings the deadline forward.
func (t *timers) shorten(ctx context.Context, kind timerKind, wait time.Duration) bool {
	job, ok := t.jobs[kind]
	if !ok || !time.Now().Add(wait).Before(job.Due()) {
		return false
	}
	t.arm(ctx, kind, wait)
	return true
}

// cancel stops a live timer. Any fire already in flight becomes stale.
func (t *timers) cancel(kind timerKind) {
	if job, ok := t.jobs[kind]; ok {
		job.Cancel()
		delete(t.jobs, kind)
	}
	t.ids[kind]++
}

func (t *timers) active(kind timerKind) bool {
	_, ok := t.jobs[kind]
	return ok
}

// due returns the deadline of a live timer of the given kind.
func (t *timers) due(kind timerKind) (time.Time, bool) {
	job, ok := t.jobs[kind]
	if !ok {
		return time.Time{}, false
	}
	return job.Due(), true
}

// stale reports whether a fire belongs to a timer that has since been
// canceled or re-armed.
func (t *timers) stale(f timerFired) bool {
	if f.id != t.ids[f.kind] {
		return true
	}
	delete(t.jobs, f.kind)
	return false
}
