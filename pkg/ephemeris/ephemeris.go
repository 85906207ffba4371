// Package ephemeris supplies Sun and Moon positions, rise/set instants and
// lunar phase for a given instant and observer.
//
// The Oracle interface is the only thing the visibility engine depends on;
// Meeus is the production implementation, and tests substitute stubs.
package ephemeris

import (
	"time"

	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// Body identifies a solar system body the oracle can position.
type Body int

const (
	Sun Body = iota
	Moon
)

// String returns the lowercase body name.
func (b Body) String() string {
	switch b {
	case Sun:
		return "sun"
	case Moon:
		return "moon"
	default:
		return "unknown"
	}
}

// Direction selects a rising or setting horizon crossing.
type Direction int

const (
	Rise Direction = iota
	Set
)

// String returns "rise" or "set".
func (d Direction) String() string {
	if d == Rise {
		return "rise"
	}
	return "set"
}

// Equatorial is an apparent topocentric position.
type Equatorial struct {
	coordinates.EquatorialCoordinates

	// Direction is the unit vector towards the body in the equatorial frame
	Direction coordinates.Vector3

	// DistanceKm is the distance from the observer's frame origin
	DistanceKm float64
}

// Oracle answers positional astronomy queries. Every method is a pure
// function of its arguments.
type Oracle interface {
	// EquatorialPosition returns the apparent right ascension and declination
	// of body at t as seen by obs.
	EquatorialPosition(body Body, t time.Time, obs coordinates.Observer) Equatorial

	// HorizontalPosition converts equatorial coordinates to altitude/azimuth
	// for obs at t.
	HorizontalPosition(t time.Time, obs coordinates.Observer, eq coordinates.EquatorialCoordinates) coordinates.HorizontalCoordinates

	// NextRiseSet returns the first rise or set of body at or after start,
	// searching at most windowDays forward.
	NextRiseSet(body Body, obs coordinates.Observer, dir Direction, start time.Time, windowDays float64) Occurrence

	// MoonPhaseAngle returns the Moon-Sun ecliptic longitude difference in
	// degrees [0, 360). 0 is new moon, 180 is full moon.
	MoonPhaseAngle(t time.Time) float64

	// IlluminationFraction returns the illuminated fraction of the lunar disk [0, 1].
	IlluminationFraction(t time.Time) float64
}
