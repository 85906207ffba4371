// Package render turns classified points, the selected location and the
// Qibla line into something a person can look at: a terminal map, a GeoJSON
// document or a spreadsheet.
package render

import (
	"math"

	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// Sink is the full rendering surface. The scan scheduler only needs the
// embedded point methods; the app state also moves the marker and redraws
// the bearing line.
type Sink interface {
	scan.Sink
	SetMarker(lat, lon float64, label string)
	DrawLine(from, to coordinates.Geographic, style string)
}

// Marker is the selected location.
type Marker struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// Line is a styled great-circle segment.
type Line struct {
	From  coordinates.Geographic `json:"from"`
	To    coordinates.Geographic `json:"to"`
	Style string                 `json:"style"`
}

// Point is one classified grid cell.
type Point struct {
	Tier      visibility.Tier `json:"tier"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Color     string          `json:"color"`
}

// Fanout forwards every call to each of its sinks in order.
type Fanout []Sink

func (f Fanout) ClearTier(tier visibility.Tier) {
	for _, s := range f {
		s.ClearTier(tier)
	}
}

func (f Fanout) AddPoint(tier visibility.Tier, lat, lon float64, color string) {
	for _, s := range f {
		s.AddPoint(tier, lat, lon, color)
	}
}

func (f Fanout) SetMarker(lat, lon float64, label string) {
	for _, s := range f {
		s.SetMarker(lat, lon, label)
	}
}

func (f Fanout) DrawLine(from, to coordinates.Geographic, style string) {
	for _, s := range f {
		s.DrawLine(from, to, style)
	}
}

// GreatCircle returns n+1 points evenly spaced along the shorter great-circle
// arc from a to b, both ends included. Antipodal endpoints have no unique
// arc; they fall back to a straight lat/lon interpolation.
func GreatCircle(a, b coordinates.Geographic, n int) []coordinates.Geographic {
	if n < 1 {
		n = 1
	}
	va, vb := toVector(a), toVector(b)
	omega := coordinates.AngleBetween(va, vb) * coordinates.DegreesToRadians
	so := math.Sin(omega)

	out := make([]coordinates.Geographic, 0, n+1)
	for i := 0; i <= n; i++ {
		f := float64(i) / float64(n)
		if so < 1e-6 {
			out = append(out, coordinates.Geographic{
				Latitude:  a.Latitude + f*(b.Latitude-a.Latitude),
				Longitude: a.Longitude + f*(b.Longitude-a.Longitude),
			})
			continue
		}
		sa := math.Sin((1-f)*omega) / so
		sb := math.Sin(f*omega) / so
		out = append(out, fromVector(coordinates.Vector3{
			X: sa*va.X + sb*vb.X,
			Y: sa*va.Y + sb*vb.Y,
			Z: sa*va.Z + sb*vb.Z,
		}))
	}
	return out
}

func toVector(g coordinates.Geographic) coordinates.Vector3 {
	lat := g.Latitude * coordinates.DegreesToRadians
	lon := g.Longitude * coordinates.DegreesToRadians
	return coordinates.Vector3{
		X: math.Cos(lat) * math.Cos(lon),
		Y: math.Cos(lat) * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

func fromVector(v coordinates.Vector3) coordinates.Geographic {
	return coordinates.Geographic{
		Latitude:  math.Atan2(v.Z, math.Hypot(v.X, v.Y)) * coordinates.RadiansToDegrees,
		Longitude: math.Atan2(v.Y, v.X) * coordinates.RadiansToDegrees,
	}
}
