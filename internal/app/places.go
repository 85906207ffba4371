package app

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/unklstewy/hilalscope/internal/db"
)

// PlaceRepository is the subset of db.PlaceRepository used here.
type PlaceRepository interface {
	FindByName(ctx context.Context, name string) (*db.Place, error)
	Save(ctx context.Context, place *db.Place) error
}

// SavedPlaces adapts the database repository to PlaceStore.
type SavedPlaces struct {
	Repo PlaceRepository
}

// Lookup implements PlaceStore.
func (p SavedPlaces) Lookup(ctx context.Context, name string) (Location, error) {
	place, err := p.Repo.FindByName(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		return Location{}, eris.Wrapf(ErrStoreMiss, "%q", name)
	}
	if err != nil {
		return Location{}, err
	}
	return Location{Latitude: place.Latitude, Longitude: place.Longitude, Label: place.Name}, nil
}

// Save stores loc under its label, replacing any place with the same name.
func (p SavedPlaces) Save(ctx context.Context, loc Location) error {
	return p.Repo.Save(ctx, &db.Place{Name: loc.Label, Latitude: loc.Latitude, Longitude: loc.Longitude})
}

// SaveSelected stores the current selection as a saved place. It fails when no
// place store that can save was configured.
func (s *State) SaveSelected(ctx context.Context) error {
	saver, ok := s.deps.Places.(interface {
		Save(ctx context.Context, loc Location) error
	})
	if !ok {
		return eris.New("saved places are not enabled")
	}
	if err := saver.Save(ctx, s.selected); err != nil {
		return eris.Wrap(err, "failed to save place")
	}
	return nil
}
