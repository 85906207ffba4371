package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/hilalscope/internal/db"
	"github.com/unklstewy/hilalscope/internal/scan"
	"github.com/unklstewy/hilalscope/internal/visibility"
	"github.com/unklstewy/hilalscope/pkg/config"
	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/ephemeris/ephemeristest"
	"github.com/unklstewy/hilalscope/pkg/geocode"
	"github.com/unklstewy/hilalscope/pkg/qibla"
)

type recordingSink struct {
	cleared int
	points  int
	marker  Location
	from    coordinates.Geographic
	to      coordinates.Geographic
	style   string
}

func (s *recordingSink) ClearTier(visibility.Tier) { s.cleared++ }

func (s *recordingSink) AddPoint(visibility.Tier, float64, float64, string) { s.points++ }

func (s *recordingSink) SetMarker(lat, lon float64, label string) {
	s.marker = Location{Latitude: lat, Longitude: lon, Label: label}
}

func (s *recordingSink) DrawLine(from, to coordinates.Geographic, style string) {
	s.from, s.to, s.style = from, to, style
}

type fakeGeocoder struct {
	place geocode.Place
	err   error
	calls int
}

func (g *fakeGeocoder) First(_ context.Context, _ string) (geocode.Place, error) {
	g.calls++
	return g.place, g.err
}

type fakeStore struct {
	places map[string]Location
	err    error
	saved  []Location
}

func (s *fakeStore) Lookup(_ context.Context, name string) (Location, error) {
	if s.err != nil {
		return Location{}, s.err
	}
	if loc, ok := s.places[name]; ok {
		return loc, nil
	}
	return Location{}, ErrStoreMiss
}

func (s *fakeStore) Save(_ context.Context, loc Location) error {
	s.saved = append(s.saved, loc)
	return nil
}

var mecca = Location{Latitude: 21.4225, Longitude: 39.8262, Label: "Mecca"}

func newTestState(t *testing.T, places PlaceStore, geocoder Geocoder) (*State, *recordingSink) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Scan.StepDegrees = 30

	engine, err := NewEngineWithOracle(cfg, &ephemeristest.Stub{PhaseAngle: 20, Illumination: 0.03})
	require.NoError(t, err)

	sink := &recordingSink{}
	sched, err := engine.NewScheduler(sink)
	require.NoError(t, err)

	state, err := engine.NewState(cfg, sched, sink, places, geocoder)
	require.NoError(t, err)
	return state, sink
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestNew_RejectsInvalidInitialLocation(t *testing.T) {
	state, sink := newTestState(t, nil, nil)
	deps := state.deps
	deps.Sink = sink
	deps.Initial = Location{Latitude: 95}

	_, err := New(deps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coordinates.ErrOutOfRange))
}

func TestNew_PlacesMarkerAndQiblaLine(t *testing.T) {
	state, sink := newTestState(t, nil, nil)

	assert.Equal(t, mecca, state.Selected())
	assert.Equal(t, mecca, sink.marker)
	assert.Equal(t, qibla.Kaaba, sink.to)
	assert.Equal(t, qibla.LineStyle, sink.style)
}

func TestSetDate_StartsScanOnlyWhenDayChanges(t *testing.T) {
	state, sink := newTestState(t, nil, nil)

	_, first := state.SetDate(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	require.NotNil(t, first)
	assert.Equal(t, len(visibility.Tiers), sink.cleared)

	_, same := state.SetDate(time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC))
	assert.Nil(t, same, "same calendar day must not restart the scan")

	_, next := state.ShiftDate(1)
	require.NotNil(t, next)
	assert.True(t, first.Stale())
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), state.Date())
	assert.Nil(t, first.Run(), "stale step must stop")
}

func TestSetDate_ScanRunsToCompletion(t *testing.T) {
	state, sink := newTestState(t, nil, nil)

	_, step := state.SetDate(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	for step != nil {
		step = step.Run()
	}

	assert.Equal(t, state.Scheduler().Grid().Cells(), sink.points)
	assert.False(t, state.Scheduler().Busy())
}

func TestSelect(t *testing.T) {
	t.Run("valid location moves marker and recomputes detail", func(t *testing.T) {
		state, sink := newTestState(t, nil, nil)
		state.SetDate(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

		d, err := state.Select(51.5074, -0.1278, "London")
		require.NoError(t, err)

		assert.Equal(t, "London", d.Location.Label)
		assert.InDelta(t, 119.0, d.Qibla.BearingDegrees, 0.5)
		assert.Equal(t, visibility.EasilyVisible, d.Assessment.Tier)
		assert.Equal(t, "London", sink.marker.Label)
		assert.InDelta(t, 51.5074, sink.from.Latitude, 1e-9)
	})

	t.Run("out of range leaves selection unchanged", func(t *testing.T) {
		state, _ := newTestState(t, nil, nil)

		_, err := state.Select(91, 0, "Nowhere")
		require.Error(t, err)
		assert.True(t, errors.Is(err, coordinates.ErrOutOfRange))
		assert.Equal(t, mecca, state.Selected())
	})

	t.Run("empty label falls back to coordinates", func(t *testing.T) {
		state, _ := newTestState(t, nil, nil)

		d, err := state.Select(51.5074, -0.1278, " ")
		require.NoError(t, err)
		assert.Equal(t, "51.5074, -0.1278", d.Location.Label)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("saved place wins over geocoder", func(t *testing.T) {
		store := &fakeStore{places: map[string]Location{
			"home": {Latitude: 42.98, Longitude: -81.24, Label: "home"},
		}}
		geo := &fakeGeocoder{}
		state, _ := newTestState(t, store, geo)

		d, err := state.Search(ctx, " home ")
		require.NoError(t, err)
		assert.Equal(t, "home", d.Location.Label)
		assert.Equal(t, 0, geo.calls)
	})

	t.Run("store miss falls through to geocoder", func(t *testing.T) {
		store := &fakeStore{}
		geo := &fakeGeocoder{place: geocode.Place{
			Latitude: 51.5074, Longitude: -0.1278, DisplayName: "London, Greater London, England, United Kingdom",
		}}
		state, _ := newTestState(t, store, geo)

		d, err := state.Search(ctx, "london")
		require.NoError(t, err)
		assert.Equal(t, "London", d.Location.Label)
		assert.Equal(t, 1, geo.calls)
	})

	t.Run("store failure is not fatal", func(t *testing.T) {
		store := &fakeStore{err: errors.New("connection refused")}
		geo := &fakeGeocoder{place: geocode.Place{Latitude: 1, Longitude: 2, DisplayName: "Somewhere"}}
		state, _ := newTestState(t, store, geo)

		d, err := state.Search(ctx, "somewhere")
		require.NoError(t, err)
		assert.Equal(t, "Somewhere", d.Location.Label)
	})

	t.Run("not found is a notice and keeps selection", func(t *testing.T) {
		geo := &fakeGeocoder{err: geocode.ErrNotFound}
		state, _ := newTestState(t, nil, geo)

		_, err := state.Search(ctx, "atlantis")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPlaceNotFound))
		assert.Equal(t, mecca, state.Selected())
	})

	t.Run("geocoder failure is not reported as not found", func(t *testing.T) {
		geo := &fakeGeocoder{err: &geocode.RateLimitError{StatusCode: 429, Message: "slow down"}}
		state, _ := newTestState(t, nil, geo)

		_, err := state.Search(ctx, "london")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrPlaceNotFound))
		_, isRate := geocode.IsRateLimitError(err)
		assert.True(t, isRate)
	})

	t.Run("empty query and no geocoder", func(t *testing.T) {
		state, _ := newTestState(t, nil, nil)

		_, err := state.Search(ctx, "  ")
		assert.True(t, errors.Is(err, ErrPlaceNotFound))

		_, err = state.Search(ctx, "london")
		assert.True(t, errors.Is(err, ErrPlaceNotFound))
	})
}

func TestResolve_LeavesSelectionAlone(t *testing.T) {
	geo := &fakeGeocoder{place: geocode.Place{
		Latitude: 51.5074, Longitude: -0.1278, DisplayName: "London, Greater London, England, United Kingdom",
	}}
	state, sink := newTestState(t, nil, geo)

	loc, err := state.Resolve(context.Background(), "london")
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 51.5074, Longitude: -0.1278, Label: "London"}, loc)
	assert.Equal(t, mecca, state.Selected())
	assert.Equal(t, mecca, sink.marker)
}

func TestRows(t *testing.T) {
	state, _ := newTestState(t, nil, nil)
	d, _ := state.SetDate(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	labels := map[string]string{}
	for _, r := range state.Rows(d) {
		labels[r.Label] = r.Value
	}
	assert.Equal(t, "Mecca", labels["Location"])
	assert.Equal(t, "Easily visible", labels["Crescent"])
	assert.Equal(t, "10.0°", labels["Moon altitude"])
	assert.Equal(t, "15:00 UTC", labels["Sunset"])
	assert.NotContains(t, labels, "Reason")
	assert.NotContains(t, labels, "Moonrise", "absent events are omitted")
}

func TestRows_ExcludedShowsReason(t *testing.T) {
	state, _ := newTestState(t, nil, nil)
	d := state.Detail()
	d.Assessment = visibility.Assessment{Tier: visibility.NotVisible, Excluded: visibility.NoSunset}

	labels := map[string]string{}
	for _, r := range state.Rows(d) {
		labels[r.Label] = r.Value
	}
	assert.Equal(t, "no sunset", labels["Reason"])
	assert.NotContains(t, labels, "Moon altitude")
}

type fakeRepo struct {
	places map[string]db.Place
}

func (r *fakeRepo) FindByName(_ context.Context, name string) (*db.Place, error) {
	p, ok := r.places[name]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &p, nil
}

func (r *fakeRepo) Save(_ context.Context, p *db.Place) error {
	r.places[p.Name] = *p
	return nil
}

func TestSavedPlaces(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{places: map[string]db.Place{}}
	store := SavedPlaces{Repo: repo}

	_, err := store.Lookup(ctx, "home")
	assert.True(t, errors.Is(err, ErrStoreMiss))

	state, _ := newTestState(t, store, nil)
	_, err = state.Select(42.98, -81.24, "home")
	require.NoError(t, err)
	require.NoError(t, state.SaveSelected(ctx))

	loc, err := store.Lookup(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 42.98, Longitude: -81.24, Label: "home"}, loc)
}

func TestSaveSelected_WithoutStore(t *testing.T) {
	state, _ := newTestState(t, nil, nil)
	assert.Error(t, state.SaveSelected(context.Background()))
}

func TestNewEngine_ValidatesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scan.StepDegrees = 0
	_, err := NewEngine(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Display.TimeZone = "Mars/Olympus_Mons"
	_, err = NewEngine(cfg)
	assert.Error(t, err)

	engine, err := NewEngine(config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, scan.DefaultGrid(), engine.Grid)
	assert.Equal(t, scan.DefaultBudget, engine.Budget)
}

func TestNewGeocoder(t *testing.T) {
	assert.NotNil(t, NewGeocoder(config.DefaultConfig().Geocode))
	assert.NotNil(t, NewGeocoder(config.GeocodeConfig{}))
}
