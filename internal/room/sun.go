package room

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Sun resolves sunrise and sunset for a location, used by daytimes whose
// start is expressed relative to a sun event.
type Sun struct {
	Latitude  float64
	Longitude float64
}

// Sunrise returns the sunrise on date's day, in date's location.
func (s Sun) Sunrise(date time.Time) time.Time {
	rise, _ := sunrise.SunriseSunset(s.Latitude, s.Longitude, date.Year(), date.Month(), date.Day())
	return rise.In(date.Location())
}

// Sunset returns the sunset on date's day, in date's location.
func (s Sun) Sunset(date time.Time) time.Time {
	_, set := sunrise.SunriseSunset(s.Latitude, s.Longitude, date.Year(), date.Month(), date.Day())
	return set.In(date.Location())
}
