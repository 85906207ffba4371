// Package app holds the application state shared by every host: the selected
// location, the chosen date and the collaborators that turn them into a map
// and a detail panel.
//
// State is not safe for concurrent use. Hosts drive it from their own event
// loop, the same loop that runs scan steps.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/internal/render"
	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/summary"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/geocode"
	"github.com/unklstewy/hilalscope/pkg/qibla"
)

// ErrPlaceNotFound is returned by Search when neither saved places nor the
// geocoder know the query. It is a notice, not a failure.
var ErrPlaceNotFound = errors.New("place not found")

// Location is a selected point with a display label.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label"`
}

// Detail is everything the detail panel shows for the selected location.
type Detail struct {
	Location   Location              `json:"location"`
	Summary    summary.Summary       `json:"summary"`
	Qibla      qibla.Result          `json:"qibla"`
	Assessment visibility.Assessment `json:"assessment"`
}

// Geocoder resolves free text to a place.
type Geocoder interface {
	First(ctx context.Context, query string) (geocode.Place, error)
}

// PlaceStore looks up saved places by name. A miss is reported by wrapping
// ErrStoreMiss; any other error is logged and the geocoder is tried next.
type PlaceStore interface {
	Lookup(ctx context.Context, name string) (Location, error)
}

// ErrStoreMiss marks a PlaceStore miss.
var ErrStoreMiss = errors.New("no saved place")

// Evaluator produces the classifier's intermediate quantities.
type Evaluator interface {
	Evaluate(date time.Time, lat, lon float64) visibility.Assessment
}

// Deps are the collaborators a State needs. Places and Geocoder are optional.
type Deps struct {
	Scheduler  *scan.Scheduler
	Sink       render.Sink
	Evaluator  Evaluator
	Summaries  *summary.Calculator
	Places     PlaceStore
	Geocoder   Geocoder
	Formatter  *render.Formatter
	Initial    Location
	InitialDay time.Time
}

// State is the single aggregate mutated by user actions.
type State struct {
	deps     Deps
	date     time.Time
	dateSet  bool
	selected Location
}

// New returns a State with the initial location selected. No scan is started
// until the first SetDate.
func New(deps Deps) (*State, error) {
	if deps.Scheduler == nil || deps.Sink == nil || deps.Evaluator == nil || deps.Summaries == nil {
		return nil, eris.New("app: scheduler, sink, evaluator and summaries are required")
	}
	if err := coordinates.ValidateLatLon(deps.Initial.Latitude, deps.Initial.Longitude); err != nil {
		return nil, eris.Wrap(err, "invalid initial location")
	}
	if deps.Formatter == nil {
		deps.Formatter = render.DefaultFormatter()
	}
	s := &State{deps: deps, selected: deps.Initial}
	if !deps.InitialDay.IsZero() {
		s.date = calendarDay(deps.InitialDay)
	}
	s.place()
	return s, nil
}

// Date returns the current calendar date.
func (s *State) Date() time.Time {
	return s.date
}

// Selected returns the current location.
func (s *State) Selected() Location {
	return s.selected
}

// Formatter returns the display formatter.
func (s *State) Formatter() *render.Formatter {
	return s.deps.Formatter
}

// Scheduler returns the scan scheduler.
func (s *State) Scheduler() *scan.Scheduler {
	return s.deps.Scheduler
}

// SetDate changes the calendar date and recomputes the detail. A scan is
// started, and its first step returned, only when the calendar day actually
// changed; otherwise the step is nil.
func (s *State) SetDate(date time.Time) (Detail, *scan.Step) {
	day := calendarDay(date)
	var step *scan.Step
	if !s.dateSet || !day.Equal(s.date) {
		s.date = day
		s.dateSet = true
		step = s.deps.Scheduler.Start(day)
		zap.L().Debug("date changed", zap.String("date", day.Format(time.DateOnly)))
	}
	return s.Detail(), step
}

// ShiftDate moves the date by days and behaves like SetDate.
func (s *State) ShiftDate(days int) (Detail, *scan.Step) {
	return s.SetDate(s.date.AddDate(0, 0, days))
}

// Select moves the selection to lat/lon. Out-of-range input is rejected and
// leaves the selection unchanged.
func (s *State) Select(lat, lon float64, label string) (Detail, error) {
	if err := coordinates.ValidateLatLon(lat, lon); err != nil {
		return Detail{}, eris.Wrap(err, "invalid selection")
	}
	if strings.TrimSpace(label) == "" {
		label = coordinateLabel(s.deps.Formatter, lat, lon)
	}
	s.selected = Location{Latitude: lat, Longitude: lon, Label: label}
	s.place()
	return s.Detail(), nil
}

// Search resolves query and selects the result. When nothing matches,
// ErrPlaceNotFound is returned and the selection is unchanged.
func (s *State) Search(ctx context.Context, query string) (Detail, error) {
	loc, err := s.Resolve(ctx, query)
	if err != nil {
		return Detail{}, err
	}
	return s.Select(loc.Latitude, loc.Longitude, loc.Label)
}

// Resolve looks query up against saved places first, then the geocoder.
// It only reads the immutable dependencies, so it may run off the goroutine
// that owns the State.
func (s *State) Resolve(ctx context.Context, query string) (Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Location{}, eris.Wrap(ErrPlaceNotFound, "empty query")
	}

	if s.deps.Places != nil {
		loc, err := s.deps.Places.Lookup(ctx, query)
		switch {
		case err == nil:
			return loc, nil
		case errors.Is(err, ErrStoreMiss):
		default:
			zap.L().Warn("saved place lookup failed", zap.String("query", query), zap.Error(err))
		}
	}

	if s.deps.Geocoder == nil {
		return Location{}, eris.Wrapf(ErrPlaceNotFound, "no place matches %q", query)
	}
	place, err := s.deps.Geocoder.First(ctx, query)
	if errors.Is(err, geocode.ErrNotFound) {
		return Location{}, eris.Wrapf(ErrPlaceNotFound, "no place matches %q", query)
	}
	if err != nil {
		return Location{}, eris.Wrap(err, "failed to search places")
	}
	return Location{Latitude: place.Latitude, Longitude: place.Longitude, Label: place.Label()}, nil
}

// Detail recomputes the panel for the current selection and date.
func (s *State) Detail() Detail {
	loc := s.selected
	return Detail{
		Location:   loc,
		Summary:    s.deps.Summaries.Compute(s.date, loc.Latitude, loc.Longitude),
		Qibla:      qibla.BearingAndDistance(loc.Latitude, loc.Longitude),
		Assessment: s.deps.Evaluator.Evaluate(s.date, loc.Latitude, loc.Longitude),
	}
}

// Rows lays out a detail for display.
func (s *State) Rows(d Detail) []render.Row {
	f := s.deps.Formatter
	rows := []render.Row{{Label: "Location", Value: d.Location.Label}}
	rows = append(rows, f.SummaryRows(d.Summary, d.Qibla)...)
	rows = append(rows, render.Row{Label: "Crescent", Value: d.Assessment.Tier.Label()})
	if d.Assessment.Excluded != visibility.NotExcluded {
		rows = append(rows, render.Row{Label: "Reason", Value: d.Assessment.Excluded.String()})
		return rows
	}
	rows = append(rows,
		render.Row{Label: "Moon altitude", Value: f.Degrees(d.Assessment.Moon.Altitude)},
		render.Row{Label: "Moon azimuth", Value: f.Degrees(d.Assessment.Moon.Azimuth)},
		render.Row{Label: "Sun altitude", Value: f.Degrees(d.Assessment.Sun.Altitude)},
		render.Row{Label: "Elongation", Value: f.Degrees(d.Assessment.Elongation)},
		render.Row{Label: "V", Value: f.Number(d.Assessment.V, 2)},
	)
	return rows
}

func (s *State) place() {
	loc := s.selected
	s.deps.Sink.SetMarker(loc.Latitude, loc.Longitude, loc.Label)
	s.deps.Sink.DrawLine(
		coordinates.Geographic{Latitude: loc.Latitude, Longitude: loc.Longitude},
		qibla.Kaaba,
		qibla.LineStyle,
	)
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func coordinateLabel(f *render.Formatter, lat, lon float64) string {
	return f.Number(lat, 4) + ", " + f.Number(lon, 4)
}
