package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/summary"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
	"github.com/unklstewy/hilalscope/pkg/qibla"
)

var _ Sink = (*Canvas)(nil)
var _ Sink = (*GeoJSON)(nil)
var _ Sink = (*Workbook)(nil)
var _ Sink = Fanout(nil)

func london() coordinates.Geographic {
	return coordinates.Geographic{Latitude: 51.5074, Longitude: -0.1278}
}

func TestGreatCircle_Endpoints(t *testing.T) {
	path := GreatCircle(london(), qibla.Kaaba, 10)
	require.Len(t, path, 11)

	assert.InDelta(t, 51.5074, path[0].Latitude, 1e-9)
	assert.InDelta(t, -0.1278, path[0].Longitude, 1e-9)
	assert.InDelta(t, qibla.Kaaba.Latitude, path[10].Latitude, 1e-9)
	assert.InDelta(t, qibla.Kaaba.Longitude, path[10].Longitude, 1e-9)

	// Equal spacing along the arc.
	total := coordinates.DistanceKm(london(), qibla.Kaaba)
	for i := 1; i < len(path); i++ {
		assert.InDelta(t, total/10, coordinates.DistanceKm(path[i-1], path[i]), 0.5)
	}

	// The first leg leaves along the Qibla bearing.
	assert.InDelta(t, qibla.BearingAndDistance(51.5074, -0.1278).BearingDegrees,
		coordinates.Bearing(path[0], path[1]), 1.0)
}

func TestGreatCircle_Degenerate(t *testing.T) {
	same := GreatCircle(qibla.Kaaba, qibla.Kaaba, 4)
	require.Len(t, same, 5)
	for _, p := range same {
		assert.InDelta(t, qibla.Kaaba.Latitude, p.Latitude, 1e-9)
		assert.InDelta(t, qibla.Kaaba.Longitude, p.Longitude, 1e-9)
	}

	anti := GreatCircle(
		coordinates.Geographic{Latitude: 0, Longitude: 0},
		coordinates.Geographic{Latitude: 0, Longitude: 180}, 2)
	require.Len(t, anti, 3)
	assert.InDelta(t, 90.0, anti[1].Longitude, 1e-9)
}

func TestToScreen_RoundTrip(t *testing.T) {
	const w, h = 120, 40

	x, y := ToScreen(90, -180, w, h)
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)

	x, y = ToScreen(-90, 180, w, h)
	assert.Equal(t, w-1, x)
	assert.Equal(t, h-1, y)

	for _, g := range []coordinates.Geographic{london(), qibla.Kaaba, {Latitude: -33.9, Longitude: 151.2}} {
		x, y := ToScreen(g.Latitude, g.Longitude, w, h)
		lat, lon := FromScreen(x, y, w, h)
		assert.InDelta(t, g.Latitude, lat, 180.0/h)
		assert.InDelta(t, g.Longitude, lon, 360.0/w)
	}
}

func TestCanvas_TiersAndClear(t *testing.T) {
	c := NewCanvas()
	c.AddPoint(visibility.EasilyVisible, 10, 20, visibility.EasilyVisible.Color())
	c.AddPoint(visibility.EasilyVisible, 10, 20, visibility.EasilyVisible.Color())
	c.AddPoint(visibility.VisibleWithOpticalAid, -10, 20, visibility.VisibleWithOpticalAid.Color())
	c.AddPoint(visibility.NotVisible, 0, 0, visibility.NotVisible.Color())

	assert.Equal(t, 1, c.Count(visibility.EasilyVisible))
	assert.Equal(t, 1, c.Count(visibility.VisibleWithOpticalAid))
	assert.Equal(t, 0, c.Count(visibility.NotVisible), "not visible is hidden by default")

	c.ClearTier(visibility.EasilyVisible)
	assert.Equal(t, 0, c.Count(visibility.EasilyVisible))
	assert.Equal(t, 1, c.Count(visibility.VisibleWithOpticalAid))

	c.ShowNotVisible = true
	c.AddPoint(visibility.NotVisible, 0, 0, visibility.NotVisible.Color())
	assert.Equal(t, 1, c.Count(visibility.NotVisible))
}

func TestCanvas_Render(t *testing.T) {
	c := NewCanvas()
	c.AddPoint(visibility.EasilyVisible, 10, 20, visibility.EasilyVisible.Color())
	c.SetMarker(51.5, -0.1, "London")
	c.DrawLine(london(), qibla.Kaaba, qibla.LineStyle)
	c.SetCursor(0, 0)

	m, ok := c.Marker()
	require.True(t, ok)
	assert.Equal(t, "London", m.Label)

	out := c.Render(82, 32)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 32)
	assert.Contains(t, out, string(glyphPoint))
	assert.Contains(t, out, string(glyphMarker))
	assert.Contains(t, out, string(glyphLine))
	assert.Contains(t, out, string(glyphCursor))

	// Tiny sizes are padded rather than panicking.
	assert.NotEmpty(t, c.Render(1, 1))
}

func TestLegend(t *testing.T) {
	withGrey := Legend(true)
	without := Legend(false)
	for _, tier := range []visibility.Tier{visibility.EasilyVisible, visibility.VisibleUnderGoodConditions, visibility.VisibleWithOpticalAid} {
		assert.Contains(t, without, tier.Label())
	}
	assert.NotContains(t, without, visibility.NotVisible.Label())
	assert.Contains(t, withGrey, visibility.NotVisible.Label())
}

type featureDoc struct {
	Type     string `json:"type"`
	Features []struct {
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

func TestGeoJSON_FeatureCollection(t *testing.T) {
	g := NewGeoJSON()
	g.AddPoint(visibility.VisibleUnderGoodConditions, -20, 30, visibility.VisibleUnderGoodConditions.Color())
	g.AddPoint(visibility.EasilyVisible, 10, -40, visibility.EasilyVisible.Color())
	g.AddPoint(visibility.NotVisible, 0, 0, visibility.NotVisible.Color())
	g.SetMarker(51.5074, -0.1278, "London")
	g.DrawLine(london(), qibla.Kaaba, qibla.LineStyle)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var doc featureDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 4)

	// Easiest tier first, lon/lat order.
	first := doc.Features[0]
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.JSONEq(t, `[-40,10]`, string(first.Geometry.Coordinates))
	assert.Equal(t, "EASILY_VISIBLE", first.Properties["tier"])
	assert.Equal(t, "#00FF00", first.Properties["color"])

	assert.Equal(t, "VISIBLE_UNDER_GOOD_CONDITIONS", doc.Features[1].Properties["tier"])
	assert.Equal(t, "marker", doc.Features[2].Properties["kind"])
	assert.Equal(t, "London", doc.Features[2].Properties["label"])

	line := doc.Features[3]
	assert.Equal(t, "LineString", line.Geometry.Type)
	assert.Equal(t, "dashed-yellow", line.Properties["style"])
}

func TestGeoJSON_IncludeNotVisibleAndClear(t *testing.T) {
	g := NewGeoJSON()
	g.IncludeNotVisible = true
	g.AddPoint(visibility.NotVisible, 0, 0, visibility.NotVisible.Color())
	g.AddPoint(visibility.EasilyVisible, 1, 1, visibility.EasilyVisible.Color())
	assert.Len(t, g.Points(), 2)

	g.ClearTier(visibility.NotVisible)
	pts := g.Points()
	require.Len(t, pts, 1)
	assert.Equal(t, visibility.EasilyVisible, pts[0].Tier)
}

func TestFanout(t *testing.T) {
	a, b := NewGeoJSON(), NewCanvas()
	f := Fanout{a, b}

	f.AddPoint(visibility.EasilyVisible, 1, 2, visibility.EasilyVisible.Color())
	f.SetMarker(3, 4, "here")
	f.DrawLine(london(), qibla.Kaaba, qibla.LineStyle)

	assert.Len(t, a.Points(), 1)
	assert.Equal(t, 1, b.Count(visibility.EasilyVisible))
	m, ok := b.Marker()
	require.True(t, ok)
	assert.Equal(t, "here", m.Label)

	f.ClearTier(visibility.EasilyVisible)
	assert.Empty(t, a.Points())
	assert.Equal(t, 0, b.Count(visibility.EasilyVisible))
}

func TestWorkbook_WriteTo(t *testing.T) {
	w := NewWorkbook()
	w.AddPoint(visibility.EasilyVisible, 10, 20, visibility.EasilyVisible.Color())
	w.AddPoint(visibility.VisibleWithOpticalAid, -10, 20, visibility.VisibleWithOpticalAid.Color())
	w.AddPoint(visibility.NotVisible, 0, 0, visibility.NotVisible.Color())
	w.SetMarker(21.4225, 39.8262, "Mecca")
	w.Complete(scan.Completion{
		Generation: 3,
		RunID:      "run-1",
		Date:       time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		Cells:      3,
		Elapsed:    42 * time.Millisecond,
	})

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{VisibilitySheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(VisibilitySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two visible points")
	assert.Equal(t, []string{"Latitude", "Longitude", "Tier", "Label", "Color"}, rows[0])
	assert.Equal(t, "EASILY_VISIBLE", rows[1][2])
	assert.Equal(t, "VISIBLE_WITH_OPTICAL_AID", rows[2][2])

	summaryRows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	values := make(map[string]string)
	for _, r := range summaryRows {
		if len(r) == 2 {
			values[r[0]] = r[1]
		}
	}
	assert.Equal(t, "2024-01-11", values["Date"])
	assert.Equal(t, "run-1", values["Run ID"])
	assert.Equal(t, "Mecca", values["Selected"])
	assert.Equal(t, "1", values[visibility.EasilyVisible.Label()])
	assert.Equal(t, "0", values[visibility.NotVisible.Label()])
}

func TestFormatter(t *testing.T) {
	f := DefaultFormatter()
	assert.Equal(t, "14.8", f.Number(14.765, 1))
	assert.Equal(t, "12,345", f.Sprintf("%d", 12345))
	assert.Equal(t, "118.9°", f.Degrees(118.94))
	assert.Equal(t, "14:57 UTC", f.Time(time.Date(2024, 1, 11, 14, 57, 0, 0, time.UTC)))
	assert.Equal(t, "1h 35m", f.Duration(95*time.Minute))
	assert.Equal(t, "40m", f.Duration(40*time.Minute))

	_, ok := f.Occurrence(ephemeris.Absent())
	assert.False(t, ok)

	_, err := NewFormatter("en", "Not/AZone")
	assert.Error(t, err)
	_, err = NewFormatter("!!", "UTC")
	assert.Error(t, err)

	de, err := NewFormatter("de", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "12.345", de.Sprintf("%d", 12345))
}

func TestFormatter_SummaryRowsOmitAbsent(t *testing.T) {
	f := DefaultFormatter()
	sunset := time.Date(2024, 1, 13, 14, 58, 0, 0, time.UTC)
	s := summary.Summary{
		Date:         time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC),
		Illumination: 4.2,
		AgeDays:      2.1,
		PhaseName:    "Waxing Crescent",
		Sunset:       ephemeris.Present(sunset),
		Moonset:      ephemeris.Present(sunset.Add(95 * time.Minute)),
	}
	rows := f.SummaryRows(s, qibla.BearingAndDistance(51.5074, -0.1278))

	labels := make(map[string]string)
	for _, r := range rows {
		labels[r.Label] = r.Value
	}
	assert.Equal(t, "14:58 UTC", labels["Sunset"])
	assert.Equal(t, "1h 35m", labels["Lag time"])
	assert.NotContains(t, labels, "Moonrise")
	assert.Equal(t, "119.0° ESE", labels["Qibla"])
}
