// Package summary gathers the human-facing lunar facts for one location
// and evening: illumination, age, phase name and the rise/set instants.
package summary

import (
	"math"
	"time"

	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
)

// SynodicMonthDays is the mean length of a lunation.
const SynodicMonthDays = 29.53

// Summary is the detail panel for one location and date. Absent events are
// omitted by presentation layers, never treated as errors.
type Summary struct {
	Date         time.Time            `json:"date"`
	Latitude     float64              `json:"latitude"`
	Longitude    float64              `json:"longitude"`
	Illumination float64              `json:"illumination_percent"`
	PhaseAngle   float64              `json:"phase_angle"`
	AgeDays      float64              `json:"age_days"`
	PhaseName    string               `json:"phase_name"`
	Sunset       ephemeris.Occurrence `json:"sunset"`
	Moonrise     ephemeris.Occurrence `json:"moonrise"`
	Moonset      ephemeris.Occurrence `json:"moonset"`
}

// LagTime returns how long the Moon stays up after sunset. It is absent
// unless both events exist and the Moon sets after the Sun.
func (s Summary) LagTime() (time.Duration, bool) {
	sunset, ok := s.Sunset.Get()
	if !ok {
		return 0, false
	}
	moonset, ok := s.Moonset.Get()
	if !ok || !moonset.After(sunset) {
		return 0, false
	}
	return moonset.Sub(sunset), true
}

// Calculator computes summaries from an oracle.
type Calculator struct {
	oracle     ephemeris.Oracle
	windowDays float64
}

// NewCalculator returns a Calculator whose rise/set searches span windowDays
// from the evening reference. Non-positive windows fall back to one day.
func NewCalculator(oracle ephemeris.Oracle, windowDays float64) *Calculator {
	if !(windowDays > 0) {
		windowDays = visibility.DefaultSearchWindowDays
	}
	return &Calculator{oracle: oracle, windowDays: windowDays}
}

// Compute returns the summary for the evening of date at lat/lon. Phase and
// illumination are evaluated at the evening reference instant, and each
// rise/set search starts there.
func (c *Calculator) Compute(date time.Time, lat, lon float64) Summary {
	obs := coordinates.NewObserver(lat, lon)
	ref := visibility.EveningReference(date)
	phase := c.oracle.MoonPhaseAngle(ref)

	return Summary{
		Date:         ref,
		Latitude:     lat,
		Longitude:    lon,
		Illumination: c.oracle.IlluminationFraction(ref) * 100,
		PhaseAngle:   phase,
		AgeDays:      MoonAgeDays(phase),
		PhaseName:    PhaseName(phase),
		Sunset:       c.oracle.NextRiseSet(ephemeris.Sun, obs, ephemeris.Set, ref, c.windowDays),
		Moonrise:     c.oracle.NextRiseSet(ephemeris.Moon, obs, ephemeris.Rise, ref, c.windowDays),
		Moonset:      c.oracle.NextRiseSet(ephemeris.Moon, obs, ephemeris.Set, ref, c.windowDays),
	}
}

// MoonAgeDays converts a phase angle to days since new moon.
func MoonAgeDays(phase float64) float64 {
	return phase / 360 * SynodicMonthDays
}

// PhaseName returns one of the eight conventional phase names. Each
// principal phase owns a 45 degree window centred on it.
func PhaseName(phase float64) string {
	names := [...]string{
		"New Moon", "Waxing Crescent", "First Quarter", "Waxing Gibbous",
		"Full Moon", "Waning Gibbous", "Last Quarter", "Waning Crescent",
	}
	p := math.Mod(phase, 360)
	if p < 0 {
		p += 360
	}
	return names[int(math.Floor((p+22.5)/45))%len(names)]
}
