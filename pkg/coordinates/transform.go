package coordinates

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// EquatorialToHorizontal converts equatorial coordinates (RA/Dec) to
// horizontal coordinates (alt/az) for a given observer and time.
//
// The result is geometric: no atmospheric refraction is applied. Callers
// that want apparent altitude add Refraction themselves.
//
// Parameters:
//   - equatorial: The equatorial coordinates to convert
//   - observer: The observer's geographic location
//   - timestamp: The instant of observation
//
// Returns: HorizontalCoordinates (altitude and azimuth in degrees)
func EquatorialToHorizontal(equatorial EquatorialCoordinates, observer Observer, timestamp time.Time) HorizontalCoordinates {
	raRad, decRad := equatorial.ToRadians()
	latRad, _, _ := observer.Location.ToRadians()

	lstRad := LocalSiderealTime(observer.Location.Longitude, timestamp) * 15.0 * DegreesToRadians

	// HA = LST - RA
	haRad := lstRad - raRad

	// alt = asin(sin(dec)·sin(lat) + cos(dec)·cos(lat)·cos(HA))
	altRad := math.Asin(
		math.Sin(decRad)*math.Sin(latRad) +
			math.Cos(decRad)*math.Cos(latRad)*math.Cos(haRad),
	)

	// az = atan2(-cos(dec)·sin(HA), sin(dec)·cos(lat) - cos(dec)·cos(HA)·sin(lat)), from north
	azRad := math.Atan2(
		-math.Cos(decRad)*math.Sin(haRad),
		math.Sin(decRad)*math.Cos(latRad)-math.Cos(decRad)*math.Cos(haRad)*math.Sin(latRad),
	)

	return HorizontalCoordinates{
		Altitude: altRad * RadiansToDegrees,
		Azimuth:  NormalizeAzimuth(azRad * RadiansToDegrees),
	}
}

// LocalSiderealTime returns the apparent local sidereal time in decimal
// hours [0, 24) for a longitude (east positive) and instant.
func LocalSiderealTime(longitudeDeg float64, t time.Time) float64 {
	jd := julian.TimeToJD(t.UTC())
	gast := sidereal.Apparent(jd).Rad() * RadiansToDegrees / 15.0
	return NormalizeRA(gast + longitudeDeg/15.0)
}

// Sæmundsson's formula stops being meaningful just below the horizon. Under
// refractionTaperTop the correction shrinks linearly to zero at
// refractionTaperEnd so apparent altitude stays continuous and increasing.
const (
	refractionTaperTop = -0.5
	refractionTaperEnd = -1.5
)

// Refraction returns the standard atmospheric refraction in degrees for a
// geometric (true) altitude, using Sæmundsson's formula.
func Refraction(altDeg float64) float64 {
	if altDeg <= refractionTaperEnd || altDeg > 90 {
		return 0
	}
	if altDeg < refractionTaperTop {
		top := saemundsson(refractionTaperTop)
		return top * (altDeg - refractionTaperEnd) / (refractionTaperTop - refractionTaperEnd)
	}
	return saemundsson(altDeg)
}

func saemundsson(h float64) float64 {
	arcmin := 1.02 / math.Tan((h+10.3/(h+5.11))*DegreesToRadians)
	return arcmin / 60.0
}
