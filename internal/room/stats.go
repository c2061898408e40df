package room

import (
	"fmt"
	"time"
)

// DailyStats is one day's usage counters for a room.
type DailyStats struct {
	Day           time.Time
	OnByAutomoli  int
	OnManual      int
	OffByAutomoli int
	OffManual     int
	TimeOn        time.Duration
}

func (s DailyStats) String() string {
	return fmt.Sprintf("on: %d automatic / %d manual, off: %d automatic / %d manual, time on: %s",
		s.OnByAutomoli, s.OnManual, s.OffByAutomoli, s.OffManual, s.TimeOn.Round(time.Second))
}

// statsAggregator accumulates a room's daily statistics. It is owned by the
// room's event loop and never accessed concurrently.
type statsAggregator struct {
	current DailyStats
	onSince time.Time // zero while lights are off
}

func newStatsAggregator(now time.Time) *statsAggregator {
	return &statsAggregator{current: DailyStats{Day: startOfDay(now)}}
}

// lightsOn records a room-level off-to-on transition.
func (s *statsAggregator) lightsOn(byAutomoli bool, at time.Time) {
	if byAutomoli {
		s.current.OnByAutomoli++
	} else {
		s.current.OnManual++
	}
	if s.onSince.IsZero() {
		s.onSince = at
	}
}

// lightsOff records a room-level on-to-off transition and accumulates the
// on-period.
func (s *statsAggregator) lightsOff(byAutomoli bool, at time.Time) {
	if byAutomoli {
		s.current.OffByAutomoli++
	} else {
		s.current.OffManual++
	}
	s.closePeriod(at)
}

// resumeOn starts on-time tracking without counting a transition, for lights
// found on at startup.
func (s *statsAggregator) resumeOn(at time.Time) {
	if s.onSince.IsZero() {
		s.onSince = at
	}
}

// rollover closes the day at midnight and returns it. A running on-period is
// split at the boundary: time before midnight goes to the closed day, the
// remainder accrues to the new one.
func (s *statsAggregator) rollover(midnight time.Time) DailyStats {
	wasOn := !s.onSince.IsZero()
	s.closePeriod(midnight)
	closed := s.current
	s.current = DailyStats{Day: startOfDay(midnight)}
	if wasOn {
		s.onSince = midnight
	}
	return closed
}

// snapshot returns a consistent point-in-time view, including any running
// on-period up to now.
func (s *statsAggregator) snapshot(now time.Time) DailyStats {
	snap := s.current
	if !s.onSince.IsZero() && now.After(s.onSince) {
		snap.TimeOn += now.Sub(s.onSince)
	}
	return snap
}

func (s *statsAggregator) closePeriod(at time.Time) {
	if !s.onSince.IsZero() {
		if at.After(s.onSince) {
			s.current.TimeOn += at.Sub(s.onSince)
		}
		s.onSince = time.Time{}
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
