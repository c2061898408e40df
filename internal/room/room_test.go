package room_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/automolid/automolid/internal/homeassistant"
	"github.com/automolid/automolid/internal/notifier"
	"github.com/automolid/automolid/internal/room"
	"github.com/automolid/automolid/pkg/pubsub"
	"github.com/clambin/go-common/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHome emulates Home Assistant: commands update the store and come back
// as state_changed events, like the real event round trip.
type fakeHome struct {
	store  *homeassistant.Store
	events *pubsub.Publisher[homeassistant.Event]
	lock   sync.Mutex
	scenes []string
}

func newFakeHome() *fakeHome {
	return &fakeHome{
		store:  homeassistant.NewStore(),
		events: pubsub.New[homeassistant.Event](slog.Default()),
	}
}

func (h *fakeHome) TurnOn(_ context.Context, entityID string, data map[string]any) error {
	if _, ok := data["flash"]; ok {
		return nil
	}
	h.setState(entityID, "on")
	return nil
}

func (h *fakeHome) TurnOff(_ context.Context, entityID string) error {
	h.setState(entityID, "off")
	return nil
}

func (h *fakeHome) ActivateScene(_ context.Context, sceneID string) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.scenes = append(h.scenes, sceneID)
	return nil
}

// setState changes an entity's state and publishes the resulting event.
func (h *fakeHome) setState(entityID, state string) {
	old, _ := h.store.Get(entityID)
	current := homeassistant.State{EntityID: entityID, State: state, LastChanged: time.Now()}
	h.store.Set(current)
	h.events.Publish(homeassistant.Event{EntityID: entityID, OldState: &old, NewState: &current, ChangedAt: time.Now()})
}

func (h *fakeHome) lightState(entityID string) string {
	state, _ := h.store.Get(entityID)
	return state.State
}

func testConfig() room.Config {
	return room.Config{
		Name:          "kitchen",
		Lights:        []string{"light.kitchen"},
		MotionSensors: []room.MotionSensor{{Entity: "binary_sensor.motion_kitchen"}},
		Delay:         200 * time.Millisecond,
		OverrideDelay: room.DefaultOverrideDelay,
		Cooldown:      room.DefaultCooldown,
		Daytimes:      room.Daytimes{{Name: "always", Light: room.LightSetting{Brightness: 80}}},
	}
}

func startRoom(t *testing.T, h *fakeHome, cfg room.Config) (*room.Room, context.CancelFunc) {
	t.Helper()
	r, err := room.New(cfg, h, h.store, h.events, pubsub.New[room.Update](slog.Default()), &notifier.SLogNotifier{Logger: slog.Default()}, room.Sun{}, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	require.Eventually(t, func() bool { return h.events.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	return r, cancel
}

func TestRoom_MotionTurnsLightsOnAndOffAgain(t *testing.T) {
	h := newFakeHome()
	_, cancel := startRoom(t, h, testConfig())
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")

	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "off" }, time.Second, 10*time.Millisecond)
}

func TestRoom_MotionRestartsCountdown(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Delay = 400 * time.Millisecond
	_, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)

	// motion halfway through the countdown restarts the full delay
	time.Sleep(200 * time.Millisecond)
	h.setState("binary_sensor.motion_kitchen", "off")
	h.setState("binary_sensor.motion_kitchen", "on")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, "on", h.lightState("light.kitchen"))

	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "off" }, time.Second, 10*time.Millisecond)
}

func TestRoom_BlockedOnByIlluminance(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.IlluminanceSensors = []string{"sensor.lux"}
	cfg.IlluminanceThreshold = 100
	h.store.Set(homeassistant.State{EntityID: "sensor.lux", State: "500"})
	_, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	time.Sleep(100 * time.Millisecond)
	assert.NotEqual(t, "on", h.lightState("light.kitchen"))
}

func TestRoom_BlockedOffDefersUntilCleared(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.HumiditySensors = []string{"sensor.humidity"}
	cfg.HumidityThreshold = 60
	h.store.Set(homeassistant.State{EntityID: "sensor.humidity", State: "80"})
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)

	// the countdown expires but humidity defers the turn-off
	assert.Eventually(t, func() bool { return r.Report().Status == room.StatusOnBlockedOff }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "on", h.lightState("light.kitchen"))

	// once the shower is over, the lights go off immediately
	h.setState("sensor.humidity", "40")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "off" }, time.Second, 10*time.Millisecond)
}

func TestRoom_OverrideShortensCountdown(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Delay = time.Hour
	cfg.OverrideDelay = 100 * time.Millisecond
	cfg.OverrideEntities = []string{"binary_sensor.door"}
	_, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)

	h.setState("binary_sensor.door", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "off" }, time.Second, 10*time.Millisecond)
}

func TestRoom_OnlyOwnEventsSuppressesAutoOff(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	onlyOwn := true
	cfg.OnlyOwnEvents = &onlyOwn
	_, cancel := startRoom(t, h, cfg)
	defer cancel()

	// light turned on manually
	h.setState("light.kitchen", "on")
	time.Sleep(50 * time.Millisecond)

	// motion must not arm a turn-off countdown
	h.setState("binary_sensor.motion_kitchen", "on")
	time.Sleep(3 * cfg.Delay)
	assert.Equal(t, "on", h.lightState("light.kitchen"))
}

func TestRoom_CooldownAfterManualOff(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Delay = time.Hour
	cfg.Cooldown = 300 * time.Millisecond
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)

	// manual off cancels the countdown and starts the cooldown
	h.setState("light.kitchen", "off")
	assert.Eventually(t, func() bool { return r.Report().Status == room.StatusIdleOff }, time.Second, 10*time.Millisecond)

	h.setState("binary_sensor.motion_kitchen", "off")
	h.setState("binary_sensor.motion_kitchen", "on")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "off", h.lightState("light.kitchen"))

	// after the cooldown, motion turns the lights back on
	time.Sleep(cfg.Cooldown)
	h.setState("binary_sensor.motion_kitchen", "off")
	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)
}

func TestRoom_DisableSwitch(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Delay = time.Hour
	cfg.DisableSwitches = []room.SwitchRule{{Entity: "switch.automoli", TriggerStates: set.New("off")}}
	h.store.Set(homeassistant.State{EntityID: "switch.automoli", State: "on"})
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)

	h.setState("switch.automoli", "off")
	assert.Eventually(t, func() bool { return r.Report().Status == room.StatusDisabled }, time.Second, 10*time.Millisecond)
	assert.True(t, r.Report().TimerDue.IsZero(), "countdown must be canceled while disabled")

	// re-enabling with the lights on restarts the full countdown
	h.setState("switch.automoli", "on")
	assert.Eventually(t, func() bool { return r.Report().Status == room.StatusOnCounting }, time.Second, 10*time.Millisecond)
	assert.False(t, r.Report().TimerDue.IsZero())
}

func TestRoom_Attribution(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Delay = 150 * time.Millisecond
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	// automatic on, automatic off
	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "off" && r.Report().Stats.OffByAutomoli == 1 }, time.Second, 10*time.Millisecond)

	// manual on, manual off
	h.setState("light.kitchen", "on")
	time.Sleep(50 * time.Millisecond)
	h.setState("light.kitchen", "off")

	assert.Eventually(t, func() bool {
		stats := r.Report().Stats
		return stats.OnByAutomoli == 1 && stats.OffByAutomoli == 1 && stats.OnManual == 1 && stats.OffManual == 1
	}, time.Second, 10*time.Millisecond)

	stats := r.Report().Stats
	assert.Equal(t, stats.OnByAutomoli+stats.OnManual, stats.OffByAutomoli+stats.OffManual)
	assert.Positive(t, stats.TimeOn)
}

func TestRoom_AttributionSurvivesRedundantCommands(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Lights = []string{"light.ceiling", "light.counter"}
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool {
		return h.lightState("light.ceiling") == "on" && h.lightState("light.counter") == "on"
	}, time.Second, 10*time.Millisecond)

	// one light turned off manually while the countdown runs
	h.setState("light.ceiling", "off")

	// the countdown expires and turns off the remaining light; the redundant
	// command to the already-off light must not leave a mark behind
	assert.Eventually(t, func() bool { return h.lightState("light.counter") == "off" }, time.Second, 10*time.Millisecond)

	// a later manual on/off cycle of that light is attributed as manual
	h.setState("light.ceiling", "on")
	time.Sleep(50 * time.Millisecond)
	h.setState("light.ceiling", "off")

	assert.Eventually(t, func() bool {
		stats := r.Report().Stats
		return stats.OffByAutomoli == 1 && stats.OffManual == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRoom_DisabledStartupTracksTimeOn(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.DisableSwitches = []room.SwitchRule{{Entity: "switch.automoli", TriggerStates: set.New("off")}}
	h.store.Set(homeassistant.State{EntityID: "switch.automoli", State: "off"})
	h.store.Set(homeassistant.State{EntityID: "light.kitchen", State: "on"})
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	assert.Eventually(t, func() bool { return r.Report().Status == room.StatusDisabled }, time.Second, 10*time.Millisecond)
	assert.True(t, r.Report().TimerDue.IsZero())

	// statistics keep tracking while disabled: the on-period accrues
	time.Sleep(50 * time.Millisecond)
	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return r.Report().Stats.TimeOn > 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "on", h.lightState("light.kitchen"))
}

func TestRoom_ZeroDelayNeverTurnsOff(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Delay = 0
	r, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "on" }, time.Second, 10*time.Millisecond)
	assert.True(t, r.Report().TimerDue.IsZero(), "no countdown with a zero delay")

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, "on", h.lightState("light.kitchen"))
}

func TestRoom_SceneDaytime(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Daytimes = room.Daytimes{{Name: "evening", Light: room.LightSetting{Scene: "scene.kitchen_dim"}}}
	_, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	assert.Eventually(t, func() bool {
		h.lock.Lock()
		defer h.lock.Unlock()
		return len(h.scenes) == 1 && h.scenes[0] == "scene.kitchen_dim"
	}, time.Second, 10*time.Millisecond)
}

func TestRoom_ZeroLightSettingStaysOff(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Daytimes = room.Daytimes{{Name: "night", Light: room.LightSetting{}}}
	_, cancel := startRoom(t, h, cfg)
	defer cancel()

	h.setState("binary_sensor.motion_kitchen", "on")
	time.Sleep(100 * time.Millisecond)
	assert.NotEqual(t, "on", h.lightState("light.kitchen"))
}

func TestRoom_LightsOnAtStartup(t *testing.T) {
	h := newFakeHome()
	h.store.Set(homeassistant.State{EntityID: "light.kitchen", State: "on"})
	r, cancel := startRoom(t, h, testConfig())
	defer cancel()

	assert.Eventually(t, func() bool { return r.Report().Status == room.StatusOnCounting }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.lightState("light.kitchen") == "off" }, time.Second, 10*time.Millisecond)
}

func TestNew_InvalidConfig(t *testing.T) {
	h := newFakeHome()
	cfg := testConfig()
	cfg.Daytimes = nil
	_, err := room.New(cfg, h, h.store, h.events, pubsub.New[room.Update](slog.Default()), &notifier.SLogNotifier{Logger: slog.Default()}, room.Sun{}, slog.Default())
	assert.Error(t, err)
}
