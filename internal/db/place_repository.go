package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// ErrNotFound is returned when a named place does not exist.
var ErrNotFound = errors.New("place not found")

// Place is a saved observation location.
type Place struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlaceRepository provides methods for managing saved places.
type PlaceRepository struct {
	db *DB
}

// NewPlaceRepository creates a new place repository.
func NewPlaceRepository(db *DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

// List returns all saved places ordered by name.
func (r *PlaceRepository) List(ctx context.Context) ([]Place, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at, updated_at
		FROM places
		ORDER BY LOWER(name) ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query places")
	}
	defer rows.Close()

	var places []Place
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "failed to scan place")
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to iterate places")
	}
	return places, nil
}

// FindByName looks a place up case-insensitively.
func (r *PlaceRepository) FindByName(ctx context.Context, name string) (*Place, error) {
	query := `
		SELECT id, name, latitude, longitude, created_at, updated_at
		FROM places
		WHERE LOWER(name) = LOWER($1)
	`

	var p Place
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(
		&p.ID,
		&p.Name,
		&p.Latitude,
		&p.Longitude,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "no saved place named %q", name)
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get place")
	}
	return &p, nil
}

// Save inserts a place or, if one with the same name exists, moves it.
func (r *PlaceRepository) Save(ctx context.Context, place *Place) error {
	place.Name = strings.TrimSpace(place.Name)
	if place.Name == "" {
		return eris.New("place name is required")
	}
	if err := coordinates.ValidateLatLon(place.Latitude, place.Longitude); err != nil {
		return eris.Wrap(err, "invalid place")
	}

	query := `
		INSERT INTO places (name, latitude, longitude)
		VALUES ($1, $2, $3)
		ON CONFLICT ((LOWER(name))) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, place.Name, place.Latitude, place.Longitude).
		Scan(&place.ID, &place.CreatedAt, &place.UpdatedAt)
	if err != nil {
		return eris.Wrap(err, "failed to save place")
	}
	return nil
}

// Delete removes a place by name.
func (r *PlaceRepository) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM places WHERE LOWER(name) = LOWER($1)`

	result, err := r.db.ExecContext(ctx, query, strings.TrimSpace(name))
	if err != nil {
		return eris.Wrap(err, "failed to delete place")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return eris.Wrapf(ErrNotFound, "no saved place named %q", name)
	}
	return nil
}
