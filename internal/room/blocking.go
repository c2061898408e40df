package room

import "github.com/automolid/automolid/internal/homeassistant"

// StateReader reads the last known state of an entity.
type StateReader interface {
	Get(entityID string) (homeassistant.State, bool)
}

// Disabled reports whether any disable switch is in a triggering state.
// While disabled, the room issues no commands at all.
func (c Config) Disabled(r StateReader) bool {
	return anyTriggered(r, c.DisableSwitches)
}

// BlockedOn reports whether turning lights on is currently blocked: a
// block-on switch is triggering, or an illuminance reading is above the
// threshold.
func (c Config) BlockedOn(r StateReader) bool {
	return anyTriggered(r, c.BlockOnSwitches) ||
		anyAbove(r, c.IlluminanceSensors, c.IlluminanceThreshold)
}

// BlockedOff reports whether turning lights off is currently blocked: a
// block-off switch is triggering, or a humidity reading is above the
// threshold.
func (c Config) BlockedOff(r StateReader) bool {
	return anyTriggered(r, c.BlockOffSwitches) ||
		anyAbove(r, c.HumiditySensors, c.HumidityThreshold)
}

// missing or unreadable states never block
func anyTriggered(r StateReader, rules []SwitchRule) bool {
	for _, rule := range rules {
		if state, ok := r.Get(rule.Entity); ok && rule.Triggered(state.State) {
			return true
		}
	}
	return false
}

func anyAbove(r StateReader, entities []string, threshold float64) bool {
	if threshold == 0 {
		return false
	}
	for _, entity := range entities {
		state, ok := r.Get(entity)
		if !ok {
			continue
		}
		if value, ok := state.Numeric(); ok && value > threshold {
			return true
		}
	}
	return false
}
