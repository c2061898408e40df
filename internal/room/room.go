// Package room implements the per-room automation state machine: motion
// turns lights on according to the active daytime, a re-armable timer turns
// them off again, and blocking switches, sensor thresholds and manual
// changes steer both. Each room runs a single event loop; there is no shared
// state between rooms.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/automolid/automolid/internal/homeassistant"
	"github.com/automolid/automolid/internal/notifier"
	"github.com/automolid/automolid/pkg/pubsub"
)

// Status is the room's automation state.
type Status int

const (
	StatusIdleOff Status = iota
	StatusOnCounting
	StatusOnBlockedOff
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusIdleOff:
		return "idle"
	case StatusOnCounting:
		return "on"
	case StatusOnBlockedOff:
		return "on (blocked off)"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so a Status renders readably in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LightController issues light commands.
type LightController interface {
	TurnOn(ctx context.Context, entityID string, data map[string]any) error
	TurnOff(ctx context.Context, entityID string) error
	ActivateScene(ctx context.Context, sceneID string) error
}

// Update is a room's published state, consumed by the collector, the health
// endpoint and the bot.
type Update struct {
	Room     string     `json:"room"`
	Status   Status     `json:"status"`
	Daytime  string     `json:"daytime"`
	TimerDue time.Time  `json:"timer_due,omitempty"`
	Stats    DailyStats `json:"stats"`
}

// Room drives one room. All mutable state is owned by the Run goroutine.
type Room struct {
	cfg        Config
	controller LightController
	reader     StateReader
	events     *pubsub.Publisher[homeassistant.Event]
	updates    *pubsub.Publisher[Update]
	notifier   notifier.Notifier
	sun        Sun
	logger     *slog.Logger
	now        func() time.Time

	status        Status
	lightsOn      bool
	statsOn       bool
	overridden    bool
	activeDaytime Daytime
	lastManualOff time.Time
	nextMidnight  time.Time
	timers        *timers
	tracker       *Tracker
	stats         *statsAggregator

	lastReport atomic.Pointer[Update]
}

// New validates cfg and returns a Room ready to Run.
func New(cfg Config, controller LightController, reader StateReader, events *pubsub.Publisher[homeassistant.Event], updates *pubsub.Publisher[Update], n notifier.Notifier, sun Sun, logger *slog.Logger) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Room{
		cfg:        cfg,
		controller: controller,
		reader:     reader,
		events:     events,
		updates:    updates,
		notifier:   n,
		sun:        sun,
		logger:     logger.With("room", cfg.Name),
		now:        time.Now,
		timers:     newTimers(),
		tracker:    NewTracker(),
		stats:      newStatsAggregator(time.Now()),
	}, nil
}

// Name returns the room's name.
func (r *Room) Name() string {
	return r.cfg.Name
}

// Report returns the room's last published state.
func (r *Room) Report() Update {
	if u := r.lastReport.Load(); u != nil {
		return *u
	}
	return Update{Room: r.cfg.Name}
}

// Run processes events until ctx is done. Each event is handled to
// completion before the next one.
func (r *Room) Run(ctx context.Context) error {
	ch := r.events.Subscribe()
	defer r.events.Unsubscribe(ch)

	r.start(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			r.handleEvent(ctx, ev)
		case f := <-r.timers.fired:
			r.handleTimer(ctx, f)
		}
	}
}

func (r *Room) start(ctx context.Context) {
	now := r.now()
	r.activeDaytime, _ = r.cfg.Daytimes.Resolve(now, r.sun)
	r.lightsOn = r.anyLightOn()
	r.statsOn = r.lightsOn
	if r.lightsOn {
		// lights already on at startup: track the on-period from here
		r.stats.resumeOn(now)
	}

	switch {
	case r.cfg.Disabled(r.reader):
		r.status = StatusDisabled
	case r.lightsOn:
		r.status = StatusOnCounting
		r.armOffTimer(ctx, r.cfg.delayFor(r.activeDaytime))
	default:
		r.status = StatusIdleOff
	}

	if len(r.cfg.Daytimes) > 1 {
		r.scheduleBoundary(ctx, now)
	}
	r.scheduleMidnight(ctx, now)
	r.logger.Info("room started", "daytime", r.activeDaytime.Name, "status", r.status.String(), "lights on", r.lightsOn)
	r.report()
}

func (r *Room) handleEvent(ctx context.Context, ev homeassistant.Event) {
	switch {
	case r.cfg.isLight(ev.EntityID):
		r.handleLightChange(ev)
	case r.isMotion(ev.EntityID):
		r.handleMotionChange(ctx, ev)
	case r.cfg.isOverride(ev.EntityID):
		r.handleOverride(ctx, ev)
	case r.cfg.isBlockingInput(ev.EntityID):
		r.handleBlockingChange(ctx, ev)
	default:
		return
	}
	r.report()
}

func (r *Room) handleTimer(ctx context.Context, f timerFired) {
	if r.timers.stale(f) {
		return
	}
	switch f.kind {
	case offTimer:
		r.handleOffTimer(ctx)
	case warningTimer:
		r.flashWarning(ctx)
	case boundaryTimer:
		r.crossBoundary(ctx)
	case midnightTimer:
		r.rollover(ctx)
	}
	r.report()
}

func (r *Room) isMotion(entityID string) bool {
	_, ok := r.cfg.motionSensor(entityID)
	return ok
}

func (r *Room) handleMotionChange(ctx context.Context, ev homeassistant.Event) {
	if ev.NewState == nil {
		return
	}
	sensor, _ := r.cfg.motionSensor(ev.EntityID)
	switch ev.NewState.State {
	case "on":
		r.logger.Debug("motion detected", "sensor", ev.EntityID)
		r.motion(ctx, ev.ChangedAt)
	case "off":
		if sensor.Mode == ModeLevel && r.motionCleared() {
			r.logger.Debug("motion cleared", "sensor", ev.EntityID)
			r.restartCountdown(ctx)
		}
	}
}

// motionCleared reports whether all level-mode sensors report clear.
func (r *Room) motionCleared() bool {
	for _, s := range r.cfg.MotionSensors {
		if s.Mode != ModeLevel {
			continue
		}
		if state, ok := r.reader.Get(s.Entity); ok && state.State == "on" {
			return false
		}
	}
	return true
}

func (r *Room) motion(ctx context.Context, at time.Time) {
	if r.status == StatusDisabled {
		return
	}
	if r.lightsOn {
		r.restartCountdown(ctx)
		return
	}
	if r.cfg.BlockedOn(r.reader) {
		r.logger.Debug("turn-on blocked")
		return
	}
	if !r.lastManualOff.IsZero() && at.Sub(r.lastManualOff) < r.cfg.Cooldown {
		r.logger.Debug("in cooldown after manual off")
		return
	}
	r.turnLightsOn(ctx)
}

// restartCountdown re-arms the turn-off timer after motion while the lights
// are on, applying the only_own_events policy when they were turned on
// externally.
func (r *Room) restartCountdown(ctx context.Context) {
	if r.status != StatusOnCounting && r.status != StatusOnBlockedOff {
		return
	}
	delay := r.cfg.delayFor(r.activeDaytime)
	if !r.tracker.SelfCausedOn() && r.cfg.OnlyOwnEvents != nil {
		if *r.cfg.OnlyOwnEvents {
			// externally turned on: leave the room alone
			return
		}
		delay = r.cfg.DelayOutsideEvents
	}
	r.armOffTimer(ctx, delay)
	r.status = StatusOnCounting
}

func (r *Room) turnLightsOn(ctx context.Context) {
	setting := r.activeDaytime.Light
	if setting.Off() {
		r.logger.Debug("daytime keeps lights off", "daytime", r.activeDaytime.Name)
		return
	}
	r.applyLightSetting(ctx, setting)
	r.lightsOn = true
	r.status = StatusOnCounting
	delay := r.cfg.delayFor(r.activeDaytime)
	r.armOffTimer(ctx, delay)
	if delay > 0 {
		r.notifier.Notify(fmt.Sprintf("%s: turning lights on (%s), off in %s", r.cfg.Name, setting, delay))
	} else {
		r.notifier.Notify(fmt.Sprintf("%s: turning lights on (%s)", r.cfg.Name, setting))
	}
}

// markPending records a self-attribution mark for entityID, but only when
// the command will produce an observable transition. A command to an entity
// already in the target state yields no state change, and its mark would
// dangle until the next manual change and misattribute it.
func (r *Room) markPending(entityID string, turnOn bool) {
	if state, ok := r.reader.Get(entityID); ok && (state.State == "on") == turnOn {
		return
	}
	r.tracker.CommandIssued(entityID, turnOn)
}

func (r *Room) applyLightSetting(ctx context.Context, setting LightSetting) {
	for _, light := range r.cfg.Lights {
		r.markPending(light, true)
	}
	if setting.Scene != "" {
		if err := r.controller.ActivateScene(ctx, setting.Scene); err != nil {
			r.logger.Error("failed to activate scene", "scene", setting.Scene, "err", err)
		}
		return
	}
	for _, light := range r.cfg.Lights {
		var data map[string]any
		if strings.HasPrefix(light, "light.") {
			data = map[string]any{"brightness_pct": setting.Brightness}
		}
		if err := r.controller.TurnOn(ctx, light, data); err != nil {
			r.logger.Error("failed to turn on light", "light", light, "err", err)
		}
	}
}

func (r *Room) turnLightsOff(ctx context.Context) {
	for _, light := range r.cfg.Lights {
		r.markPending(light, false)
		if err := r.controller.TurnOff(ctx, light); err != nil {
			r.logger.Error("failed to turn off light", "light", light, "err", err)
		}
	}
	r.lightsOn = false
	r.status = StatusIdleOff
	r.overridden = false
	r.timers.cancel(offTimer)
	r.timers.cancel(warningTimer)
	r.notifier.Notify(fmt.Sprintf("%s: turning lights off", r.cfg.Name))
}

// armOffTimer (re)arms the turn-off countdown and, when configured, a
// warning flash shortly before the deadline. A zero delay disables the
// automatic turn-off: the lights stay on until changed by other means.
func (r *Room) armOffTimer(ctx context.Context, delay time.Duration) {
	r.overridden = false
	if delay <= 0 {
		r.timers.cancel(offTimer)
		r.timers.cancel(warningTimer)
		return
	}
	r.timers.arm(ctx, offTimer, delay)
	if r.cfg.WarningFlash && delay > warningLead {
		r.timers.arm(ctx, warningTimer, delay-warningLead)
	} else {
		r.timers.cancel(warningTimer)
	}
}

func (r *Room) handleOffTimer(ctx context.Context) {
	if r.status != StatusOnCounting {
		return
	}
	if r.cfg.BlockedOff(r.reader) {
		r.logger.Debug("turn-off blocked, deferring")
		r.status = StatusOnBlockedOff
		return
	}
	r.turnLightsOff(ctx)
}

// flashWarning briefly flashes the lights as a final warning before the
// automatic turn-off. The flash does not change light state, so it neither
// affects attribution nor statistics.
func (r *Room) flashWarning(ctx context.Context) {
	if r.status != StatusOnCounting {
		return
	}
	for _, light := range r.cfg.Lights {
		if !strings.HasPrefix(light, "light.") {
			continue
		}
		if err := r.controller.TurnOn(ctx, light, map[string]any{"flash": "short"}); err != nil {
			r.logger.Error("failed to flash light", "light", light, "err", err)
		}
	}
}

func (r *Room) handleLightChange(ev homeassistant.Event) {
	if ev.NewState == nil {
		return
	}
	oldState := ""
	if ev.OldState != nil {
		oldState = ev.OldState.State
	}
	switch {
	case ev.NewState.State == "on" && oldState != "on":
		self := r.tracker.Observe(ev.EntityID, true)
		r.lightsOn = true
		if !r.statsOn {
			r.stats.lightsOn(self, ev.ChangedAt)
			r.statsOn = true
		}
		if !self {
			r.logger.Debug("light turned on manually", "light", ev.EntityID)
			if r.status == StatusIdleOff {
				// on, but no countdown until motion is seen
				r.status = StatusOnCounting
			}
		}
	case ev.NewState.State == "off" && oldState == "on":
		self := r.tracker.Observe(ev.EntityID, false)
		if r.anyLightOn() {
			return
		}
		r.lightsOn = false
		if r.statsOn {
			r.stats.lightsOff(self, ev.ChangedAt)
			r.statsOn = false
		}
		if !self {
			r.logger.Debug("light turned off manually", "light", ev.EntityID)
			r.lastManualOff = ev.ChangedAt
			r.timers.cancel(offTimer)
			r.timers.cancel(warningTimer)
			r.overridden = false
			if r.status != StatusDisabled {
				r.status = StatusIdleOff
			}
		}
	}
}

func (r *Room) handleOverride(ctx context.Context, ev homeassistant.Event) {
	if ev.NewState == nil || ev.NewState.State != "on" {
		return
	}
	if r.status != StatusOnCounting || !r.timers.active(offTimer) {
		return
	}
	if r.timers.shorten(ctx, offTimer, r.cfg.OverrideDelay) {
		r.overridden = true
		r.timers.cancel(warningTimer)
		r.logger.Debug("countdown shortened", "delay", r.cfg.OverrideDelay)
	}
}

func (r *Room) handleBlockingChange(ctx context.Context, ev homeassistant.Event) {
	disabled := r.cfg.Disabled(r.reader)
	switch {
	case disabled && r.status != StatusDisabled:
		r.timers.cancel(offTimer)
		r.timers.cancel(warningTimer)
		r.overridden = false
		r.status = StatusDisabled
		r.logger.Info("room disabled")
	case !disabled && r.status == StatusDisabled:
		if r.lightsOn {
			r.status = StatusOnCounting
			r.restartCountdown(ctx)
		} else {
			r.status = StatusIdleOff
		}
		r.logger.Info("room enabled", "status", r.status.String())
	case r.status == StatusOnBlockedOff && !r.cfg.BlockedOff(r.reader):
		// the deferred turn-off can proceed now
		r.turnLightsOff(ctx)
	}
}

func (r *Room) crossBoundary(ctx context.Context) {
	now := r.now()
	next, _ := r.cfg.Daytimes.Resolve(now, r.sun)
	changed := next.Name != r.activeDaytime.Name
	r.activeDaytime = next
	if changed {
		r.logger.Info("daytime changed", "daytime", next.Name)
		if r.cfg.TransitionOnDaytimeSwitch && r.lightsOn && r.status != StatusDisabled {
			if next.Light.Off() {
				r.turnLightsOff(ctx)
			} else {
				r.applyLightSetting(ctx, next.Light)
			}
		}
	}
	r.scheduleBoundary(ctx, now)
}

func (r *Room) scheduleBoundary(ctx context.Context, now time.Time) {
	_, at := r.cfg.Daytimes.NextBoundary(now, r.sun)
	r.timers.arm(ctx, boundaryTimer, at.Sub(now))
}

func (r *Room) rollover(ctx context.Context) {
	closed := r.stats.rollover(r.nextMidnight)
	r.notifier.Notify(fmt.Sprintf("%s: %s", r.cfg.Name, closed))
	r.scheduleMidnight(ctx, r.now())
}

func (r *Room) scheduleMidnight(ctx context.Context, now time.Time) {
	r.nextMidnight = startOfDay(now).AddDate(0, 0, 1)
	r.timers.arm(ctx, midnightTimer, r.nextMidnight.Sub(now))
}

func (r *Room) anyLightOn() bool {
	for _, light := range r.cfg.Lights {
		if state, ok := r.reader.Get(light); ok && state.State == "on" {
			return true
		}
	}
	return false
}

func (r *Room) report() {
	update := Update{
		Room:    r.cfg.Name,
		Status:  r.status,
		Daytime: r.activeDaytime.Name,
		Stats:   r.stats.snapshot(r.now()),
	}
	if due, ok := r.timers.due(offTimer); ok {
		update.TimerDue = due
	}
	r.lastReport.Store(&update)
	r.updates.Publish(update)
}
