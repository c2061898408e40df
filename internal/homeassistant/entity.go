// Package homeassistant talks to a Home Assistant instance: a REST client for
// service calls and state snapshots, a websocket listener for the live event
// stream, and a store holding the last known state of every entity.
package homeassistant

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// State is the state of a single Home Assistant entity.
type State struct {
	EntityID    string                     `json:"entity_id"`
	State       string                     `json:"state"`
	Attributes  map[string]json.RawMessage `json:"attributes,omitempty"`
	LastChanged time.Time                  `json:"last_changed"`
}

// Domain returns the entity's domain, i.e. "light" for "light.kitchen".
func (s State) Domain() string {
	domain, _, _ := strings.Cut(s.EntityID, ".")
	return domain
}

// Numeric returns the state parsed as a float. ok is false if the state is
// missing, "unavailable", "unknown" or otherwise not a number.
func (s State) Numeric() (float64, bool) {
	v, err := strconv.ParseFloat(s.State, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Event is a state_changed event received over the websocket.
type Event struct {
	EntityID  string
	OldState  *State
	NewState  *State
	ChangedAt time.Time
}
