// Package visibility classifies how easily a young lunar crescent can be
// seen after sunset, using Odeh's parabolic criterion.
package visibility

import (
	"time"

	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
)

// Criterion constants, all in degrees.
const (
	// MinMoonAltitude is the apparent altitude below which the Moon counts as set
	MinMoonAltitude = 0.5

	// DanjonLimit is the smallest Sun-Moon separation at which a crescent can exist
	DanjonLimit = 6.4

	EasyThreshold    = 5.6
	GoodThreshold    = 2.0
	OpticalThreshold = -0.9
)

// DefaultSearchWindowDays bounds the sunset search after the evening reference.
const DefaultSearchWindowDays = 1.0

// Exclusion explains why a location was short-circuited to NotVisible.
type Exclusion int

const (
	NotExcluded Exclusion = iota
	NoSunset
	MoonBelowHorizon
	InsideDanjonLimit
)

// String describes the exclusion.
func (e Exclusion) String() string {
	switch e {
	case NoSunset:
		return "no sunset"
	case MoonBelowHorizon:
		return "moon below horizon"
	case InsideDanjonLimit:
		return "inside Danjon limit"
	default:
		return ""
	}
}

// MarshalText encodes the exclusion as its description.
func (e Exclusion) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Assessment holds the quantities behind a classification.
type Assessment struct {
	Tier       Tier                              `json:"tier"`
	Sunset     ephemeris.Occurrence              `json:"sunset"`
	Moon       coordinates.HorizontalCoordinates `json:"moon"`
	Sun        coordinates.HorizontalCoordinates `json:"sun"`
	Elongation float64                           `json:"elongation"`
	V          float64                           `json:"v"`
	Excluded   Exclusion                         `json:"excluded,omitempty"`
}

// OdehV returns the visibility parameter for Moon altitude alt and
// Sun-Moon separation w, both in degrees.
func OdehV(alt, w float64) float64 {
	return alt - (-0.1018*w*w + 1.6787*w - 5.5704)
}

// TierForV maps a visibility parameter to its tier. Thresholds are inclusive.
func TierForV(v float64) Tier {
	switch {
	case v >= EasyThreshold:
		return EasilyVisible
	case v >= GoodThreshold:
		return VisibleUnderGoodConditions
	case v >= OpticalThreshold:
		return VisibleWithOpticalAid
	default:
		return NotVisible
	}
}

// Judge applies the exclusion rules, in order, then the V thresholds.
func Judge(alt, w float64) (Tier, Exclusion, float64) {
	v := OdehV(alt, w)
	if alt < MinMoonAltitude {
		return NotVisible, MoonBelowHorizon, v
	}
	if w < DanjonLimit {
		return NotVisible, InsideDanjonLimit, v
	}
	return TierForV(v), NotExcluded, v
}

// EveningReference returns 12:00 UTC on the calendar date of date, read in
// date's own location. Sunset is searched forward from this instant.
func EveningReference(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// Classifier evaluates the criterion against an ephemeris oracle.
// It holds no mutable state and is safe for concurrent use if the oracle is.
type Classifier struct {
	oracle     ephemeris.Oracle
	windowDays float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSearchWindow sets how many days past the evening reference to look for sunset.
func WithSearchWindow(days float64) Option {
	return func(c *Classifier) {
		if days > 0 {
			c.windowDays = days
		}
	}
}

// NewClassifier returns a Classifier backed by oracle.
func NewClassifier(oracle ephemeris.Oracle, opts ...Option) *Classifier {
	c := &Classifier{oracle: oracle, windowDays: DefaultSearchWindowDays}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the visibility tier for the evening of date at lat/lon.
func (c *Classifier) Classify(date time.Time, lat, lon float64) Tier {
	return c.Evaluate(date, lat, lon).Tier
}

// Evaluate classifies and returns the intermediate quantities.
func (c *Classifier) Evaluate(date time.Time, lat, lon float64) Assessment {
	obs := coordinates.NewObserver(lat, lon)

	sunset := c.oracle.NextRiseSet(ephemeris.Sun, obs, ephemeris.Set, EveningReference(date), c.windowDays)
	at, ok := sunset.Get()
	if !ok {
		return Assessment{Tier: NotVisible, Sunset: sunset, Excluded: NoSunset}
	}

	sun := c.oracle.EquatorialPosition(ephemeris.Sun, at, obs)
	moon := c.oracle.EquatorialPosition(ephemeris.Moon, at, obs)

	a := Assessment{
		Sunset:     sunset,
		Moon:       c.oracle.HorizontalPosition(at, obs, moon.EquatorialCoordinates),
		Sun:        c.oracle.HorizontalPosition(at, obs, sun.EquatorialCoordinates),
		Elongation: coordinates.AngleBetween(sun.Direction, moon.Direction),
	}
	a.Tier, a.Excluded, a.V = Judge(a.Moon.Altitude, a.Elongation)
	return a
}
