// Package qibla computes the great-circle direction and distance from any
// point on Earth to the Kaaba.
package qibla

import (
	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// Kaaba is the fixed reference coordinate.
var Kaaba = coordinates.Geographic{Latitude: 21.4225, Longitude: 39.8262}

// LineStyle is the rendering hint for the bearing line.
const LineStyle = "dashed-yellow"

// coincidentKm is the distance below which the bearing is meaningless.
const coincidentKm = 1e-6

// Result is the bearing and distance from an observer to the Kaaba.
type Result struct {
	// BearingDegrees is the initial great-circle bearing in [0, 360)
	BearingDegrees float64 `json:"bearing_degrees"`

	// DistanceKm is the haversine distance on a 6371 km sphere
	DistanceKm float64 `json:"distance_km"`
}

// BearingAndDistance returns the Qibla direction and distance for lat/lon.
// At the Kaaba itself the distance is 0 and the bearing is reported as 0.
func BearingAndDistance(lat, lon float64) Result {
	from := coordinates.Geographic{Latitude: lat, Longitude: lon}

	dist := coordinates.DistanceKm(from, Kaaba)
	if dist < coincidentKm {
		return Result{}
	}

	return Result{
		BearingDegrees: coordinates.Bearing(from, Kaaba),
		DistanceKm:     dist,
	}
}

// Cardinal returns a 16-point compass label for a bearing, e.g. "ESE".
func Cardinal(bearing float64) string {
	points := [...]string{
		"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
	}
	idx := int(coordinates.NormalizeAzimuth(bearing+11.25)/22.5) % len(points)
	return points[idx]
}
