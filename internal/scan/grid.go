package scan

import (
	"math"

	"github.com/rotisserie/eris"
)

// Grid is a regular latitude/longitude lattice. Rows run from LatMax down
// to LatMin inclusive; columns run from -180 up to, but excluding, 180.
type Grid struct {
	LatMax float64 `json:"lat_max"`
	LatMin float64 `json:"lat_min"`
	Step   float64 `json:"step"`
}

// DefaultGrid covers the populated latitudes at two degree resolution.
func DefaultGrid() Grid {
	return Grid{LatMax: 60, LatMin: -60, Step: 2}
}

// Validate rejects degenerate grids.
func (g Grid) Validate() error {
	switch {
	case !(g.Step > 0):
		return eris.Errorf("grid step must be positive, got %v", g.Step)
	case g.Step > 180:
		return eris.Errorf("grid step %v exceeds 180 degrees", g.Step)
	case g.LatMax < g.LatMin:
		return eris.Errorf("grid lat_max %v below lat_min %v", g.LatMax, g.LatMin)
	case g.LatMax > 90 || g.LatMin < -90:
		return eris.Errorf("grid latitudes [%v, %v] outside [-90, 90]", g.LatMin, g.LatMax)
	}
	return nil
}

const gridEpsilon = 1e-9

// Rows returns the number of latitude rows.
func (g Grid) Rows() int {
	return int(math.Floor((g.LatMax-g.LatMin)/g.Step+gridEpsilon)) + 1
}

// Cols returns the number of longitude columns.
func (g Grid) Cols() int {
	return int(math.Ceil(360/g.Step - gridEpsilon))
}

// Cells returns Rows x Cols.
func (g Grid) Cells() int {
	return g.Rows() * g.Cols()
}

// Lat returns the latitude of row i.
func (g Grid) Lat(i int) float64 {
	return g.LatMax - float64(i)*g.Step
}

// Lon returns the longitude of column j.
func (g Grid) Lon(j int) float64 {
	return -180 + float64(j)*g.Step
}
