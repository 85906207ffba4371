package render

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

const (
	glyphPoint   = '█'
	glyphFaint   = '░'
	glyphLine    = '·'
	glyphMarker  = '✚'
	glyphCursor  = '◎'
	glyphGrid    = '┼'
	glyphEquator = '─'
)

type cellKey struct{ lat, lon float64 }

// Canvas is an equirectangular terminal map. Points are stored at full
// resolution and only binned to character cells when rendered, so resizing
// the terminal never loses data.
//
// Canvas is not safe for concurrent use.
type Canvas struct {
	// ShowNotVisible paints NOT_VISIBLE cells in grey. Off by default so the
	// map reads as a set of visibility zones over an empty world.
	ShowNotVisible bool

	points map[visibility.Tier]map[cellKey]struct{}
	marker *Marker
	line   *Line
	cursor *coordinates.Geographic
}

// NewCanvas returns an empty map.
func NewCanvas() *Canvas {
	c := &Canvas{points: make(map[visibility.Tier]map[cellKey]struct{})}
	for _, t := range visibility.Tiers {
		c.points[t] = make(map[cellKey]struct{})
	}
	return c
}

func (c *Canvas) ClearTier(tier visibility.Tier) {
	c.points[tier] = make(map[cellKey]struct{})
}

func (c *Canvas) AddPoint(tier visibility.Tier, lat, lon float64, _ string) {
	if tier == visibility.NotVisible && !c.ShowNotVisible {
		return
	}
	if c.points[tier] == nil {
		c.points[tier] = make(map[cellKey]struct{})
	}
	c.points[tier][cellKey{lat, lon}] = struct{}{}
}

func (c *Canvas) SetMarker(lat, lon float64, label string) {
	c.marker = &Marker{Latitude: lat, Longitude: lon, Label: label}
}

func (c *Canvas) DrawLine(from, to coordinates.Geographic, style string) {
	c.line = &Line{From: from, To: to, Style: style}
}

// SetCursor places the map cursor. The cursor is a host concern and is not
// part of the Sink interface.
func (c *Canvas) SetCursor(lat, lon float64) {
	c.cursor = &coordinates.Geographic{Latitude: lat, Longitude: lon}
}

// Count returns the number of stored points of a tier.
func (c *Canvas) Count(tier visibility.Tier) int {
	return len(c.points[tier])
}

// Marker returns the selected location, if any.
func (c *Canvas) Marker() (Marker, bool) {
	if c.marker == nil {
		return Marker{}, false
	}
	return *c.marker, true
}

// ToScreen maps a location to a character cell on a width×height map.
// Latitude spans the full [-90, 90] range so the map keeps its shape at
// any grid extent.
func ToScreen(lat, lon float64, width, height int) (int, int) {
	x := int(math.Floor((lon + 180) / 360 * float64(width)))
	y := int(math.Floor((90 - lat) / 180 * float64(height)))
	return clamp(x, 0, width-1), clamp(y, 0, height-1)
}

// FromScreen is the inverse of ToScreen, returning the centre of a cell.
func FromScreen(x, y, width, height int) (float64, float64) {
	lon := (float64(x)+0.5)/float64(width)*360 - 180
	lat := 90 - (float64(y)+0.5)/float64(height)*180
	return lat, lon
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Render draws the map inside a border. width and height are the outer
// dimensions including the border.
func (c *Canvas) Render(width, height int) string {
	w, h := width-2, height-2
	if w < 8 {
		w = 8
	}
	if h < 4 {
		h = 4
	}

	glyphs := make([][]rune, h)
	colors := make([][]string, h)
	for y := range glyphs {
		glyphs[y] = make([]rune, w)
		colors[y] = make([]string, w)
		for x := range glyphs[y] {
			glyphs[y][x] = ' '
		}
	}

	// Graticule every 30 degrees, equator emphasised.
	for lat := -60.0; lat <= 60; lat += 30 {
		_, y := ToScreen(lat, 0, w, h)
		for lon := -180.0; lon < 180; lon += 30 {
			x, _ := ToScreen(lat, lon, w, h)
			glyphs[y][x] = glyphGrid
			colors[y][x] = "238"
		}
		if lat == 0 {
			for x := range glyphs[y] {
				if glyphs[y][x] == ' ' {
					glyphs[y][x] = glyphEquator
					colors[y][x] = "238"
				}
			}
		}
	}

	// Paint the hardest tier first so easier tiers win shared cells.
	for i := len(visibility.Tiers) - 1; i >= 0; i-- {
		tier := visibility.Tiers[i]
		glyph := glyphPoint
		if tier == visibility.NotVisible {
			glyph = glyphFaint
		}
		for k := range c.points[tier] {
			x, y := ToScreen(k.lat, k.lon, w, h)
			glyphs[y][x] = glyph
			colors[y][x] = tier.Color()
		}
	}

	if c.line != nil {
		for _, p := range GreatCircle(c.line.From, c.line.To, 4*w) {
			x, y := ToScreen(p.Latitude, p.Longitude, w, h)
			glyphs[y][x] = glyphLine
			colors[y][x] = lineColor(c.line.Style)
		}
	}
	if c.marker != nil {
		x, y := ToScreen(c.marker.Latitude, c.marker.Longitude, w, h)
		glyphs[y][x] = glyphMarker
		colors[y][x] = "208"
	}
	if c.cursor != nil {
		x, y := ToScreen(c.cursor.Latitude, c.cursor.Longitude, w, h)
		glyphs[y][x] = glyphCursor
		colors[y][x] = "255"
	}

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	var b strings.Builder
	b.WriteString(borderStyle.Render("┌" + strings.Repeat("─", w) + "┐"))
	b.WriteString("\n")
	for y := 0; y < h; y++ {
		b.WriteString(borderStyle.Render("│"))
		for x := 0; x < w; x++ {
			ch := string(glyphs[y][x])
			if colors[y][x] == "" {
				b.WriteString(ch)
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(colors[y][x])).Render(ch))
		}
		b.WriteString(borderStyle.Render("│"))
		b.WriteString("\n")
	}
	b.WriteString(borderStyle.Render("└" + strings.Repeat("─", w) + "┘"))
	return b.String()
}

// Legend renders one line per visible tier with its swatch.
func Legend(includeNotVisible bool) string {
	var b strings.Builder
	for _, t := range visibility.Tiers {
		if t == visibility.NotVisible && !includeNotVisible {
			continue
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color())).Render(string(glyphPoint)))
		b.WriteString(" ")
		b.WriteString(t.Label())
		b.WriteString("\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render(string(glyphMarker)))
	b.WriteString(" Selected location\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render(string(glyphLine)))
	b.WriteString(" Qibla direction")
	return b.String()
}

func lineColor(style string) string {
	if strings.Contains(style, "yellow") {
		return "226"
	}
	return "250"
}
