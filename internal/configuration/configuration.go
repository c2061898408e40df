// Package configuration loads the rooms file and resolves it into immutable
// per-room configurations. Values omitted by a room fall back to the
// defaults section, then to built-in defaults, so the room state machine
// never consults shared settings at runtime.
package configuration

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/automolid/automolid/internal/room"
	"github.com/clambin/go-common/set"
	"gopkg.in/yaml.v3"
)

// Rooms is the rooms file: a defaults section plus one entry per room.
type Rooms struct {
	Defaults Defaults     `yaml:"defaults"`
	Rooms    []RoomConfig `yaml:"rooms"`
}

// Defaults cascade to every room that does not set its own value. The
// duration fields are pointers so an explicit zero (delay: 0 disables the
// automatic turn-off) is distinguishable from unset.
type Defaults struct {
	Delay                     *time.Duration  `yaml:"delay"`
	DelayOutsideEvents        *time.Duration  `yaml:"delay_outside_events"`
	OverrideDelay             *time.Duration  `yaml:"override_delay"`
	Cooldown                  *time.Duration  `yaml:"cooldown"`
	WarningFlash              *bool           `yaml:"warning_flash"`
	TransitionOnDaytimeSwitch *bool           `yaml:"transition_on_daytime_switch"`
	OnlyOwnEvents             *bool           `yaml:"only_own_events"`
	Daytimes                  []DaytimeConfig `yaml:"daytimes"`
}

// RoomConfig is one room's section in the rooms file.
type RoomConfig struct {
	Name                      string          `yaml:"name"`
	Lights                    []string        `yaml:"lights"`
	Motion                    []string        `yaml:"motion"`
	MotionState               []string        `yaml:"motion_state"`
	Illuminance               []string        `yaml:"illuminance"`
	IlluminanceThreshold      float64         `yaml:"illuminance_threshold"`
	Humidity                  []string        `yaml:"humidity"`
	HumidityThreshold         float64         `yaml:"humidity_threshold"`
	Disable                   []SwitchConfig  `yaml:"disable"`
	BlockOn                   []SwitchConfig  `yaml:"block_on"`
	BlockOff                  []SwitchConfig  `yaml:"block_off"`
	Override                  []string        `yaml:"override"`
	Delay                     *time.Duration  `yaml:"delay"`
	DelayOutsideEvents        *time.Duration  `yaml:"delay_outside_events"`
	OverrideDelay             *time.Duration  `yaml:"override_delay"`
	Cooldown                  *time.Duration  `yaml:"cooldown"`
	WarningFlash              *bool           `yaml:"warning_flash"`
	TransitionOnDaytimeSwitch *bool           `yaml:"transition_on_daytime_switch"`
	OnlyOwnEvents             *bool           `yaml:"only_own_events"`
	Daytimes                  []DaytimeConfig `yaml:"daytimes"`
}

// SwitchConfig is a switch-like entity with its triggering states. It can be
// written as a plain entity id, in which case the triggering states default
// to "off".
type SwitchConfig struct {
	Entity string   `yaml:"entity"`
	States []string `yaml:"states"`
}

func (s *SwitchConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Entity)
	}
	type plain SwitchConfig
	return node.Decode((*plain)(s))
}

// DaytimeConfig is one daytime entry.
type DaytimeConfig struct {
	Name  string        `yaml:"name"`
	Start string        `yaml:"start"`
	Light LightValue    `yaml:"light"`
	Delay time.Duration `yaml:"delay"`
}

// LightValue is a daytime's light setting: a brightness percentage or a
// scene entity id. Zero means the lights stay off.
type LightValue struct {
	Scene      string
	Brightness int
}

func (l *LightValue) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&l.Brightness); err != nil {
		if err = node.Decode(&s); err != nil {
			return err
		}
		if brightness, numErr := strconv.Atoi(s); numErr == nil {
			l.Brightness = brightness
		} else {
			l.Scene = s
			return nil
		}
	}
	if l.Brightness < 0 || l.Brightness > 100 {
		return fmt.Errorf("light setting %d out of range 0-100", l.Brightness)
	}
	return nil
}

// LoadFile loads and resolves the rooms file at path.
func LoadFile(path string) ([]room.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load loads and resolves a rooms file.
func Load(r io.Reader) ([]room.Config, error) {
	var rooms Rooms
	if err := yaml.NewDecoder(r).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("invalid rooms file: %w", err)
	}
	return rooms.Resolve()
}

// Resolve merges each room with the defaults and the built-in defaults into
// an immutable room configuration.
func (r Rooms) Resolve() ([]room.Config, error) {
	if len(r.Rooms) == 0 {
		return nil, fmt.Errorf("no rooms configured")
	}
	configs := make([]room.Config, 0, len(r.Rooms))
	seen := set.New[string]()
	for _, rc := range r.Rooms {
		if seen.Contains(rc.Name) {
			return nil, fmt.Errorf("duplicate room %q", rc.Name)
		}
		seen.Add(rc.Name)
		cfg, err := rc.resolve(r.Defaults)
		if err != nil {
			return nil, fmt.Errorf("room %q: %w", rc.Name, err)
		}
		if err = cfg.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (rc RoomConfig) resolve(defaults Defaults) (room.Config, error) {
	cfg := room.Config{
		Name:                      rc.Name,
		Lights:                    rc.Lights,
		IlluminanceSensors:        rc.Illuminance,
		IlluminanceThreshold:      rc.IlluminanceThreshold,
		HumiditySensors:           rc.Humidity,
		HumidityThreshold:         rc.HumidityThreshold,
		DisableSwitches:           switchRules(rc.Disable),
		BlockOnSwitches:           switchRules(rc.BlockOn),
		BlockOffSwitches:          switchRules(rc.BlockOff),
		OverrideEntities:          rc.Override,
		Delay:                     pick(room.DefaultDelay, rc.Delay, defaults.Delay),
		OverrideDelay:             pick(room.DefaultOverrideDelay, rc.OverrideDelay, defaults.OverrideDelay),
		Cooldown:                  pick(room.DefaultCooldown, rc.Cooldown, defaults.Cooldown),
		WarningFlash:              pickBool(rc.WarningFlash, defaults.WarningFlash),
		TransitionOnDaytimeSwitch: pickBool(rc.TransitionOnDaytimeSwitch, defaults.TransitionOnDaytimeSwitch),
		OnlyOwnEvents:             rc.OnlyOwnEvents,
	}
	if cfg.OnlyOwnEvents == nil {
		cfg.OnlyOwnEvents = defaults.OnlyOwnEvents
	}
	cfg.DelayOutsideEvents = pick(cfg.Delay, rc.DelayOutsideEvents, defaults.DelayOutsideEvents)

	for _, entity := range rc.Motion {
		cfg.MotionSensors = append(cfg.MotionSensors, room.MotionSensor{Entity: entity, Mode: room.ModeEvent})
	}
	for _, entity := range rc.MotionState {
		cfg.MotionSensors = append(cfg.MotionSensors, room.MotionSensor{Entity: entity, Mode: room.ModeLevel})
	}

	daytimes := rc.Daytimes
	if len(daytimes) == 0 {
		daytimes = defaults.Daytimes
	}
	for _, dc := range daytimes {
		dt := room.Daytime{
			Name:  dc.Name,
			Light: room.LightSetting{Scene: dc.Light.Scene, Brightness: dc.Light.Brightness},
			Delay: dc.Delay,
		}
		if dc.Start != "" {
			start, err := room.ParseStartTime(dc.Start)
			if err != nil {
				return room.Config{}, fmt.Errorf("daytime %q: %w", dc.Name, err)
			}
			dt.Start = start
		}
		cfg.Daytimes = append(cfg.Daytimes, dt)
	}
	return cfg, nil
}

func switchRules(switches []SwitchConfig) []room.SwitchRule {
	rules := make([]room.SwitchRule, 0, len(switches))
	for _, s := range switches {
		states := s.States
		if len(states) == 0 {
			states = []string{"off"}
		}
		rules = append(rules, room.SwitchRule{Entity: s.Entity, TriggerStates: set.New(states...)})
	}
	return rules
}

// pick returns the first explicitly set duration. An explicit zero is a
// valid setting, not a fallback to the default.
func pick(fallback time.Duration, values ...*time.Duration) time.Duration {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return fallback
}

func pickBool(values ...*bool) bool {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return false
}
