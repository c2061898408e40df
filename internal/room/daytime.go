package room

import (
	"fmt"
	"strings"
	"time"
)

// A Daytime is a named time window with the light setting to apply while it
// is active, and an optional turn-off delay overriding the room's default.
type Daytime struct {
	Name  string
	Start StartTime
	Light LightSetting
	Delay time.Duration // 0: use the room's delay
}

// LightSetting is what "lights on" means during a daytime: a scene, a
// brightness percentage, or nothing at all (lights stay off).
type LightSetting struct {
	Scene      string
	Brightness int
}

// Off reports whether this setting turns no lights on.
func (l LightSetting) Off() bool {
	return l.Scene == "" && l.Brightness == 0
}

func (l LightSetting) String() string {
	if l.Scene != "" {
		return l.Scene
	}
	return fmt.Sprintf("%d%%", l.Brightness)
}

// StartTime is a daytime's start: either a fixed time of day, or sunrise or
// sunset with an optional offset.
type StartTime struct {
	hour, minute, second int
	sunEvent             string // "", "sunrise" or "sunset"
	offset               time.Duration
}

// ParseStartTime parses "HH:MM", "HH:MM:SS", "sunrise" or "sunset", the
// latter two optionally followed by a signed offset such as "sunset-30m".
func ParseStartTime(s string) (StartTime, error) {
	s = strings.TrimSpace(s)
	for _, event := range []string{"sunrise", "sunset"} {
		rest, found := strings.CutPrefix(s, event)
		if !found {
			continue
		}
		st := StartTime{sunEvent: event}
		if rest = strings.TrimSpace(rest); rest != "" {
			offset, err := time.ParseDuration(strings.TrimPrefix(rest, "+"))
			if err != nil {
				return StartTime{}, fmt.Errorf("invalid start time %q: %w", s, err)
			}
			st.offset = offset
		}
		return st, nil
	}

	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return StartTime{}, fmt.Errorf("invalid start time %q: %w", s, err)
	}
	return StartTime{hour: t.Hour(), minute: t.Minute(), second: t.Second()}, nil
}

// On returns the start's absolute time on date's day.
func (st StartTime) On(date time.Time, sun Sun) time.Time {
	switch st.sunEvent {
	case "sunrise":
		return sun.Sunrise(date).Add(st.offset)
	case "sunset":
		return sun.Sunset(date).Add(st.offset)
	default:
		return time.Date(date.Year(), date.Month(), date.Day(), st.hour, st.minute, st.second, 0, date.Location())
	}
}

// Daytimes is a room's ordered daytime list.
type Daytimes []Daytime

// Resolve returns the daytime active at now: the one whose start is the
// latest not after now, wrapping across midnight. When two daytimes start at
// the same instant, the one declared later wins.
func (d Daytimes) Resolve(now time.Time, sun Sun) (Daytime, error) {
	if len(d) == 0 {
		return Daytime{}, fmt.Errorf("no daytimes configured")
	}
	if len(d) == 1 {
		return d[0], nil
	}

	if active, ok := d.latestStartedBy(now, now, sun); ok {
		return active, nil
	}
	// before the first start of the day: the last daytime of yesterday is
	// still active
	yesterday := now.AddDate(0, 0, -1)
	if active, ok := d.latestStartedBy(yesterday, now, sun); ok {
		return active, nil
	}
	// all starts lie in the future on both days (can't happen with fixed
	// times; guard against degenerate sun offsets)
	return d[len(d)-1], nil
}

func (d Daytimes) latestStartedBy(date, now time.Time, sun Sun) (Daytime, bool) {
	var active Daytime
	var activeStart time.Time
	var found bool
	for _, dt := range d {
		start := dt.Start.On(date, sun)
		if start.After(now) {
			continue
		}
		if !found || !start.Before(activeStart) {
			active, activeStart, found = dt, start, true
		}
	}
	return active, found
}

// NextBoundary returns the first daytime transition after now, wrapping to
// the next day, and the daytime that becomes active then.
func (d Daytimes) NextBoundary(now time.Time, sun Sun) (Daytime, time.Time) {
	var at time.Time
	for _, dt := range d {
		if start := dt.Start.On(now, sun); start.After(now) && (at.IsZero() || start.Before(at)) {
			at = start
		}
	}
	if at.IsZero() {
		tomorrow := now.AddDate(0, 0, 1)
		for _, dt := range d {
			if start := dt.Start.On(tomorrow, sun); at.IsZero() || start.Before(at) {
				at = start
			}
		}
	}
	next, _ := d.Resolve(at, sun)
	return next, at
}
