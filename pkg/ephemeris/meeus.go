package ephemeris

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

const (
	// deltaT approximates TT-UT for the 2020s. Positions are computed in TT.
	deltaT = 69.2 / 86400.0

	sunDistanceKm   = 149597870.7
	moonRadiusKm    = 1737.4
	earthEquatorKm  = 6378.14
	refractionAtHzn = 34.0 / 60.0
	sunSemidiameter = 16.0 / 60.0

	// maxWindowDays bounds every rise/set search so polar queries terminate.
	maxWindowDays = 10.0
)

// Options configures the Meeus oracle.
type Options struct {
	// Refraction adds standard atmospheric refraction to HorizontalPosition altitudes
	Refraction bool

	// SampleInterval is the coarse step of rise/set searches
	SampleInterval time.Duration

	// Tolerance is the bisection precision of rise/set searches
	Tolerance time.Duration
}

// DefaultOptions returns refraction on, 10 minute sampling and 15 second precision.
func DefaultOptions() Options {
	return Options{
		Refraction:     true,
		SampleInterval: 10 * time.Minute,
		Tolerance:      15 * time.Second,
	}
}

// Meeus is an Oracle backed by the algorithms of Jean Meeus'
// "Astronomical Algorithms" (solar theory, ELP-based lunar series).
type Meeus struct {
	opts Options
}

// NewMeeus returns a Meeus oracle. Zero durations in opts fall back to defaults.
func NewMeeus(opts Options) *Meeus {
	def := DefaultOptions()
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = def.SampleInterval
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	return &Meeus{opts: opts}
}

var _ Oracle = (*Meeus)(nil)

// EquatorialPosition implements Oracle. The Moon is corrected for
// topocentric parallax; solar parallax (under 9") is ignored.
func (m *Meeus) EquatorialPosition(body Body, t time.Time, obs coordinates.Observer) Equatorial {
	jde := julianAt(t)

	switch body {
	case Moon:
		raRad, decRad, dist := moonGeocentric(jde)
		raRad, decRad = topocentric(raRad, decRad, dist, obs, t)
		return newEquatorial(raRad, decRad, dist)
	default:
		α, δ := solar.ApparentEquatorial(jde)
		return newEquatorial(α.Rad(), δ.Rad(), sunDistanceKm)
	}
}

// HorizontalPosition implements Oracle.
func (m *Meeus) HorizontalPosition(t time.Time, obs coordinates.Observer, eq coordinates.EquatorialCoordinates) coordinates.HorizontalCoordinates {
	h := coordinates.EquatorialToHorizontal(eq, obs, t)
	if m.opts.Refraction {
		h.Altitude += coordinates.Refraction(h.Altitude)
	}
	return h
}

// NextRiseSet implements Oracle. The event is the upper limb touching the
// refracted horizon. windowDays is clamped to ten days.
func (m *Meeus) NextRiseSet(body Body, obs coordinates.Observer, dir Direction, start time.Time, windowDays float64) Occurrence {
	if windowDays <= 0 || math.IsNaN(windowDays) {
		return Absent()
	}
	windowDays = math.Min(windowDays, maxWindowDays)

	window := time.Duration(windowDays * float64(24*time.Hour))
	steps := int(window/m.opts.SampleInterval) + 1

	altitude := func(t time.Time) float64 {
		eq := m.EquatorialPosition(body, t, obs)
		return coordinates.EquatorialToHorizontal(eq.EquatorialCoordinates, obs, t).Altitude
	}

	return FindAltitudeEvent(altitude, start, start.Add(window), m.horizon(body, start), dir, steps, m.opts.Tolerance)
}

// horizon returns the geometric altitude of the body's center at which its
// upper limb appears on the horizon.
func (m *Meeus) horizon(body Body, t time.Time) float64 {
	if body == Sun {
		return -(refractionAtHzn + sunSemidiameter)
	}
	_, _, dist := moonGeocentric(julianAt(t))
	semidiameter := math.Asin(moonRadiusKm/dist) * coordinates.RadiansToDegrees
	return -(refractionAtHzn + semidiameter)
}

// MoonPhaseAngle implements Oracle.
func (m *Meeus) MoonPhaseAngle(t time.Time) float64 {
	jde := julianAt(t)
	Δψ, ε := trueObliquity(jde)

	λMoon, _, _ := moonposition.Position(jde)
	α, δ := solar.ApparentEquatorial(jde)
	λSun := eclipticLongitude(α.Rad(), δ.Rad(), ε)

	return normalize360((λMoon.Rad() + Δψ - λSun) * coordinates.RadiansToDegrees)
}

// IlluminationFraction implements Oracle using the geocentric elongation and
// the Sun-Moon phase angle (Meeus eq. 48.2 and 48.3).
func (m *Meeus) IlluminationFraction(t time.Time) float64 {
	jde := julianAt(t)

	raMoon, decMoon, dist := moonGeocentric(jde)
	α, δ := solar.ApparentEquatorial(jde)

	moonDir := coordinates.UnitVector(coordinates.ToEquatorialDegrees(raMoon, decMoon))
	sunDir := coordinates.UnitVector(coordinates.ToEquatorialDegrees(α.Rad(), δ.Rad()))
	ψ := coordinates.AngleBetween(moonDir, sunDir) * coordinates.DegreesToRadians

	i := math.Atan2(sunDistanceKm*math.Sin(ψ), dist-sunDistanceKm*math.Cos(ψ))
	return (1 + math.Cos(i)) / 2
}

// moonGeocentric returns the Moon's apparent geocentric RA/Dec in radians
// and its distance in km, in the same true-equinox frame as
// solar.ApparentEquatorial.
func moonGeocentric(jde float64) (ra, dec, distKm float64) {
	λ, β, Δ := moonposition.Position(jde)
	Δψ, ε := trueObliquity(jde)

	lon, lat := λ.Rad()+Δψ, β.Rad()
	x := math.Cos(lat) * math.Cos(lon)
	y := math.Cos(lat) * math.Sin(lon)
	z := math.Sin(lat)

	yEq := y*math.Cos(ε) - z*math.Sin(ε)
	zEq := y*math.Sin(ε) + z*math.Cos(ε)

	return math.Atan2(yEq, x), math.Asin(zEq), Δ
}

// trueObliquity returns the nutation in longitude and the true obliquity of
// the ecliptic, both in radians.
func trueObliquity(jde float64) (Δψ, ε float64) {
	ψ, Δε := nutation.Nutation(jde)
	return ψ.Rad(), (nutation.MeanObliquity(jde) + Δε).Rad()
}

// topocentric shifts geocentric RA/Dec (radians) to the observer's position
// using the horizontal parallax of a body at distKm (Meeus ch. 40, sea level).
func topocentric(ra, dec, distKm float64, obs coordinates.Observer, t time.Time) (float64, float64) {
	lat := obs.Location.Latitude * coordinates.DegreesToRadians
	lst := sidereal.Apparent(julian.TimeToJD(t.UTC())).Rad() + obs.Location.Longitude*coordinates.DegreesToRadians

	sinπ := earthEquatorKm / distKm
	u := math.Atan(0.99664719 * math.Tan(lat))
	ρSinφ := 0.99664719 * math.Sin(u)
	ρCosφ := math.Cos(u)

	H := lst - ra
	cosδ := math.Cos(dec)

	Δα := math.Atan2(-ρCosφ*sinπ*math.Sin(H), cosδ-ρCosφ*sinπ*math.Cos(H))
	decTopo := math.Atan2(
		(math.Sin(dec)-ρSinφ*sinπ)*math.Cos(Δα),
		cosδ-ρCosφ*sinπ*math.Cos(H),
	)
	return ra + Δα, decTopo
}

// julianAt returns the Julian ephemeris day for t.
func julianAt(t time.Time) float64 {
	return julian.TimeToJD(t.UTC()) + deltaT
}

func newEquatorial(raRad, decRad, distKm float64) Equatorial {
	eq := coordinates.ToEquatorialDegrees(raRad, decRad)
	return Equatorial{
		EquatorialCoordinates: eq,
		Direction:             coordinates.UnitVector(eq),
		DistanceKm:            distKm,
	}
}

// eclipticLongitude converts RA/Dec (radians) to ecliptic longitude (radians).
func eclipticLongitude(ra, dec, ε float64) float64 {
	return math.Atan2(math.Sin(ra)*math.Cos(ε)+math.Tan(dec)*math.Sin(ε), math.Cos(ra))
}

func normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
