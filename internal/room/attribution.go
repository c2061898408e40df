package room

import "github.com/clambin/go-common/set"

// Tracker attributes observed light state changes: a change that was
// preceded by a command from this system is self-caused, anything else is
// manual.
type Tracker struct {
	pendingOn  set.Set[string]
	pendingOff set.Set[string]
	selfOn     bool
}

func NewTracker() *Tracker {
	return &Tracker{
		pendingOn:  set.New[string](),
		pendingOff: set.New[string](),
	}
}

// CommandIssued marks the next observed transition of entityID as
// self-caused. Call it immediately before issuing the command.
func (t *Tracker) CommandIssued(entityID string, turnOn bool) {
	if turnOn {
		t.pendingOn.Add(entityID)
	} else {
		t.pendingOff.Add(entityID)
	}
}

// Observe consumes a pending mark for an observed transition and reports
// whether it was self-caused. The room's on-attribution follows the latest
// observed turn-on and resets on every turn-off.
func (t *Tracker) Observe(entityID string, turnOn bool) bool {
	pending := t.pendingOff
	if turnOn {
		pending = t.pendingOn
	}
	self := pending.Contains(entityID)
	pending.Remove(entityID)
	if turnOn {
		t.selfOn = self
	} else {
		t.selfOn = false
	}
	return self
}

// SelfCausedOn reports whether the lights are on because this system turned
// them on.
func (t *Tracker) SelfCausedOn() bool {
	return t.selfOn
}
