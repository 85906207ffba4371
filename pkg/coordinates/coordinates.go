package coordinates

import (
	"errors"
	"fmt"
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's mean radius in kilometers
	EarthRadiusKm = 6371.0
)

// ErrOutOfRange is returned for latitude/longitude pairs outside the valid domain.
var ErrOutOfRange = errors.New("coordinates out of range")

// Geographic represents a position on Earth's surface.
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64 `json:"longitude"`

	// Altitude in meters above mean sea level
	Altitude float64 `json:"altitude,omitempty"`
}

// HorizontalCoordinates represents a position in the local horizontal coordinate system.
type HorizontalCoordinates struct {
	// Altitude in degrees above the horizon
	// Negative values are below the horizon
	Altitude float64 `json:"altitude"`

	// Azimuth in degrees from north (0-360)
	// 0/360 = North, 90 = East, 180 = South, 270 = West
	Azimuth float64 `json:"azimuth"`
}

// EquatorialCoordinates represents a position in the equatorial coordinate system.
type EquatorialCoordinates struct {
	// RightAscension (RA) in decimal hours (0-24)
	RightAscension float64 `json:"right_ascension"`

	// Declination (Dec) in decimal degrees (-90 to +90)
	Declination float64 `json:"declination"`
}

// Observer represents the geographic location of someone looking at the sky.
// An Observer is immutable for the duration of one calculation.
type Observer struct {
	// Location is the observer's position on Earth
	Location Geographic
}

// NewObserver builds a sea-level observer at the given latitude and longitude.
func NewObserver(lat, lon float64) Observer {
	return Observer{Location: Geographic{Latitude: lat, Longitude: lon}}
}

// ValidateLatLon reports whether lat/lon fall inside [-90,90] x [-180,180].
func ValidateLatLon(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("%w: NaN coordinate", ErrOutOfRange)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %.4f", ErrOutOfRange, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %.4f", ErrOutOfRange, lon)
	}
	return nil
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians,
		g.Longitude * DegreesToRadians,
		g.Altitude
}

// ToRadians converts EquatorialCoordinates to radians.
// RA is converted from hours (1 hour = 15 degrees).
func (e EquatorialCoordinates) ToRadians() (float64, float64) {
	return e.RightAscension * 15.0 * DegreesToRadians, e.Declination * DegreesToRadians
}

// ToEquatorialDegrees converts radians to EquatorialCoordinates.
// Returns RA in hours and Dec in degrees.
func ToEquatorialDegrees(raRad, decRad float64) EquatorialCoordinates {
	return EquatorialCoordinates{
		RightAscension: NormalizeRA(raRad * RadiansToDegrees / 15.0),
		Declination:    decRad * RadiansToDegrees,
	}
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// NormalizeRA ensures right ascension is in the range [0, 24).
func NormalizeRA(ra float64) float64 {
	raHours := math.Mod(ra, 24.0)
	if raHours < 0 {
		raHours += 24.0
	}
	return raHours
}

// Bearing calculates the initial great-circle bearing from one point to another.
// Returns bearing in degrees [0, 360), where 0 = North, 90 = East.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	return math.Mod(bearing+360, 360)
}

// DistanceKm calculates the great-circle distance between two points
// using the haversine formula. The atan2 form stays inside its domain when
// rounding pushes the haversine term slightly past 1 near antipodes.
func DistanceKm(from, to Geographic) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	dLat := lat2Rad - lat1Rad
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	a = math.Min(math.Max(a, 0), 1)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}
