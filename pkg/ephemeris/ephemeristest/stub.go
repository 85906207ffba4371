// Package ephemeristest provides a deterministic ephemeris.Oracle for tests.
package ephemeristest

import (
	"sync/atomic"
	"time"

	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
)

// sunDeclination parks the stub Sun near the south celestial pole so the
// Moon can be placed at any elongation along the same meridian.
const sunDeclination = -89.0

// Stub is a scripted Oracle. Nil funcs fall back to fixed defaults:
// sunset at 15:00 UTC of the start day, Moon 10 degrees high at 20 degrees
// elongation, no moonrise or moonset.
type Stub struct {
	// RiseSet answers NextRiseSet
	RiseSet func(body ephemeris.Body, obs coordinates.Observer, dir ephemeris.Direction, start time.Time, windowDays float64) ephemeris.Occurrence

	// MoonAltitude is the Moon's apparent altitude in degrees
	MoonAltitude func(obs coordinates.Observer, t time.Time) float64

	// Elongation is the Sun-Moon angle in degrees, 0 to 179
	Elongation func(obs coordinates.Observer, t time.Time) float64

	// SunAltitude is the Sun's apparent altitude in degrees
	SunAltitude float64

	// PhaseAngle and Illumination are returned verbatim
	PhaseAngle   float64
	Illumination float64

	calls atomic.Int64
}

var _ ephemeris.Oracle = (*Stub)(nil)

// Calls returns how many oracle methods have been invoked.
func (s *Stub) Calls() int64 {
	return s.calls.Load()
}

// EquatorialPosition places the Sun at a fixed point and the Moon the
// scripted elongation away from it.
func (s *Stub) EquatorialPosition(body ephemeris.Body, t time.Time, obs coordinates.Observer) ephemeris.Equatorial {
	s.calls.Add(1)

	dec := sunDeclination
	dist := 149597870.7
	if body == ephemeris.Moon {
		dec += s.elongation(obs, t)
		dist = 384400
	}
	eq := coordinates.EquatorialCoordinates{RightAscension: 0, Declination: dec}
	return ephemeris.Equatorial{
		EquatorialCoordinates: eq,
		Direction:             coordinates.UnitVector(eq),
		DistanceKm:            dist,
	}
}

// HorizontalPosition returns the scripted Sun or Moon altitude, telling
// them apart by declination. Coincident bodies resolve to the Moon.
func (s *Stub) HorizontalPosition(t time.Time, obs coordinates.Observer, eq coordinates.EquatorialCoordinates) coordinates.HorizontalCoordinates {
	s.calls.Add(1)

	if eq.Declination == sunDeclination && s.elongation(obs, t) != 0 {
		return coordinates.HorizontalCoordinates{Altitude: s.SunAltitude, Azimuth: 250}
	}
	alt := 10.0
	if s.MoonAltitude != nil {
		alt = s.MoonAltitude(obs, t)
	}
	return coordinates.HorizontalCoordinates{Altitude: alt, Azimuth: 245}
}

// NextRiseSet implements ephemeris.Oracle.
func (s *Stub) NextRiseSet(body ephemeris.Body, obs coordinates.Observer, dir ephemeris.Direction, start time.Time, windowDays float64) ephemeris.Occurrence {
	s.calls.Add(1)

	if s.RiseSet != nil {
		return s.RiseSet(body, obs, dir, start, windowDays)
	}
	if body == ephemeris.Sun && dir == ephemeris.Set {
		y, m, d := start.UTC().Date()
		return ephemeris.Present(time.Date(y, m, d, 15, 0, 0, 0, time.UTC))
	}
	return ephemeris.Absent()
}

// MoonPhaseAngle implements ephemeris.Oracle.
func (s *Stub) MoonPhaseAngle(time.Time) float64 {
	s.calls.Add(1)
	return s.PhaseAngle
}

// IlluminationFraction implements ephemeris.Oracle.
func (s *Stub) IlluminationFraction(time.Time) float64 {
	s.calls.Add(1)
	return s.Illumination
}

func (s *Stub) elongation(obs coordinates.Observer, t time.Time) float64 {
	if s.Elongation == nil {
		return 20
	}
	return s.Elongation(obs, t)
}
