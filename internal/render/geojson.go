package render

import (
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// GeoJSON accumulates a scan as a FeatureCollection. It is safe for
// concurrent use so web handlers can marshal while a scan is being served.
type GeoJSON struct {
	// IncludeNotVisible keeps NOT_VISIBLE points in the output.
	IncludeNotVisible bool

	mu     sync.Mutex
	points map[visibility.Tier][]Point
	marker *Marker
	line   *Line
}

// NewGeoJSON returns an empty collection.
func NewGeoJSON() *GeoJSON {
	return &GeoJSON{points: make(map[visibility.Tier][]Point)}
}

func (g *GeoJSON) ClearTier(tier visibility.Tier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.points, tier)
}

func (g *GeoJSON) AddPoint(tier visibility.Tier, lat, lon float64, color string) {
	if tier == visibility.NotVisible && !g.IncludeNotVisible {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.points[tier] = append(g.points[tier], Point{Tier: tier, Latitude: lat, Longitude: lon, Color: color})
}

func (g *GeoJSON) SetMarker(lat, lon float64, label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marker = &Marker{Latitude: lat, Longitude: lon, Label: label}
}

func (g *GeoJSON) DrawLine(from, to coordinates.Geographic, style string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.line = &Line{From: from, To: to, Style: style}
}

// Points returns a copy of the stored points, easiest tier first.
func (g *GeoJSON) Points() []Point {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Point
	for _, t := range visibility.Tiers {
		out = append(out, g.points[t]...)
	}
	return out
}

// FeatureCollection builds the collection: one Point feature per classified
// cell, then the marker, then the bearing line sampled along the great circle.
func (g *GeoJSON) FeatureCollection() *geojson.FeatureCollection {
	g.mu.Lock()
	defer g.mu.Unlock()

	fc := &geojson.FeatureCollection{}
	for _, t := range visibility.Tiers {
		for _, p := range g.points[t] {
			fc.Features = append(fc.Features, &geojson.Feature{
				Geometry: geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}),
				Properties: map[string]interface{}{
					"kind":  "visibility",
					"tier":  p.Tier.String(),
					"label": p.Tier.Label(),
					"color": p.Color,
				},
			})
		}
	}

	if g.marker != nil {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{g.marker.Longitude, g.marker.Latitude}),
			Properties: map[string]interface{}{
				"kind":  "marker",
				"label": g.marker.Label,
			},
		})
	}

	if g.line != nil {
		path := GreatCircle(g.line.From, g.line.To, 64)
		flat := make([]float64, 0, 2*len(path))
		for _, p := range path {
			flat = append(flat, p.Longitude, p.Latitude)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewLineStringFlat(geom.XY, flat),
			Properties: map[string]interface{}{
				"kind":  "bearing",
				"style": g.line.Style,
			},
		})
	}
	return fc
}

// MarshalJSON encodes the FeatureCollection.
func (g *GeoJSON) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(g.FeatureCollection())
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode feature collection")
	}
	return data, nil
}
