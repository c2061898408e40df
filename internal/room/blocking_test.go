package room

import (
	"testing"

	"github.com/automolid/automolid/internal/homeassistant"
	"github.com/clambin/go-common/set"
	"github.com/stretchr/testify/assert"
)

type fakeReader map[string]string

func (f fakeReader) Get(entityID string) (homeassistant.State, bool) {
	state, ok := f[entityID]
	return homeassistant.State{EntityID: entityID, State: state}, ok
}

func TestConfig_Disabled(t *testing.T) {
	cfg := Config{
		DisableSwitches: []SwitchRule{
			{Entity: "switch.automoli", TriggerStates: set.New("off")},
		},
	}

	assert.True(t, cfg.Disabled(fakeReader{"switch.automoli": "off"}))
	assert.False(t, cfg.Disabled(fakeReader{"switch.automoli": "on"}))
	// missing reading never blocks
	assert.False(t, cfg.Disabled(fakeReader{}))
}

func TestConfig_BlockedOn(t *testing.T) {
	cfg := Config{
		BlockOnSwitches: []SwitchRule{
			{Entity: "input_boolean.guests", TriggerStates: set.New("on")},
		},
		IlluminanceSensors:   []string{"sensor.lux"},
		IlluminanceThreshold: 100,
	}

	tests := []struct {
		name   string
		states fakeReader
		want   bool
	}{
		{"nothing blocking", fakeReader{"input_boolean.guests": "off", "sensor.lux": "50"}, false},
		{"switch triggering", fakeReader{"input_boolean.guests": "on"}, true},
		{"bright room", fakeReader{"sensor.lux": "150.5"}, true},
		{"at threshold is not above", fakeReader{"sensor.lux": "100"}, false},
		{"unreadable sensor", fakeReader{"sensor.lux": "unavailable"}, false},
		{"no readings at all", fakeReader{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.BlockedOn(tt.states))
		})
	}
}

func TestConfig_BlockedOff(t *testing.T) {
	cfg := Config{
		BlockOffSwitches: []SwitchRule{
			{Entity: "binary_sensor.sleep", TriggerStates: set.New("on")},
		},
		HumiditySensors:   []string{"sensor.humidity"},
		HumidityThreshold: 60,
	}

	assert.False(t, cfg.BlockedOff(fakeReader{"sensor.humidity": "55"}))
	assert.True(t, cfg.BlockedOff(fakeReader{"sensor.humidity": "75"}), "shower keeps the lights on")
	assert.True(t, cfg.BlockedOff(fakeReader{"binary_sensor.sleep": "on"}))

	// threshold 0 disables humidity blocking altogether
	cfg.HumidityThreshold = 0
	assert.False(t, cfg.BlockedOff(fakeReader{"sensor.humidity": "99"}))
}
