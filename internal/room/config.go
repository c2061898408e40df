package room

import (
	"fmt"
	"slices"
	"time"

	"github.com/clambin/go-common/set"
)

// Defaults applied during configuration resolution when a room does not set
// its own value.
const (
	DefaultDelay         = 150 * time.Second
	DefaultOverrideDelay = 60 * time.Second
	DefaultCooldown      = 30 * time.Second
	warningLead          = 60 * time.Second
)

// SensorMode is how a motion sensor reports.
type SensorMode int

const (
	// ModeEvent sensors emit a brief "on" pulse per detection.
	ModeEvent SensorMode = iota
	// ModeLevel sensors hold "on" while motion persists and report "off"
	// once it clears.
	ModeLevel
)

// MotionSensor is a motion entity with its reporting mode.
type MotionSensor struct {
	Entity string
	Mode   SensorMode
}

// SwitchRule names a switch-like entity and the states in which it triggers.
type SwitchRule struct {
	Entity        string
	TriggerStates set.Set[string]
}

// Triggered reports whether state is one of the rule's triggering states.
func (r SwitchRule) Triggered(state string) bool {
	return r.TriggerStates.Contains(state)
}

// Config is a room's fully resolved, immutable configuration.
type Config struct {
	Name   string
	Lights []string

	MotionSensors []MotionSensor

	IlluminanceSensors   []string
	IlluminanceThreshold float64 // 0: no illuminance blocking
	HumiditySensors      []string
	HumidityThreshold    float64 // 0: no humidity blocking

	DisableSwitches  []SwitchRule
	BlockOnSwitches  []SwitchRule
	BlockOffSwitches []SwitchRule

	OverrideEntities []string
	OverrideDelay    time.Duration

	Delay              time.Duration // 0: never turn off automatically
	DelayOutsideEvents time.Duration
	Cooldown           time.Duration

	WarningFlash              bool
	TransitionOnDaytimeSwitch bool
	OnlyOwnEvents             *bool // nil: unset

	Daytimes Daytimes
}

// Validate reports configuration errors. These are fatal at startup and
// never raised at runtime.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("room has no name")
	}
	if len(c.Lights) == 0 {
		return fmt.Errorf("room %q has no lights", c.Name)
	}
	if len(c.Daytimes) == 0 {
		return fmt.Errorf("room %q has no daytimes", c.Name)
	}
	if len(c.MotionSensors) == 0 {
		return fmt.Errorf("room %q has no motion sensors", c.Name)
	}
	return nil
}

// delayFor returns the turn-off delay while dt is active.
func (c Config) delayFor(dt Daytime) time.Duration {
	if dt.Delay > 0 {
		return dt.Delay
	}
	return c.Delay
}

func (c Config) isLight(entityID string) bool {
	return slices.Contains(c.Lights, entityID)
}

func (c Config) isOverride(entityID string) bool {
	return slices.Contains(c.OverrideEntities, entityID)
}

func (c Config) motionSensor(entityID string) (MotionSensor, bool) {
	for _, s := range c.MotionSensors {
		if s.Entity == entityID {
			return s, true
		}
	}
	return MotionSensor{}, false
}

func (c Config) isBlockingInput(entityID string) bool {
	for _, rules := range [][]SwitchRule{c.DisableSwitches, c.BlockOnSwitches, c.BlockOffSwitches} {
		for _, r := range rules {
			if r.Entity == entityID {
				return true
			}
		}
	}
	return slices.Contains(c.HumiditySensors, entityID) || slices.Contains(c.IlluminanceSensors, entityID)
}
