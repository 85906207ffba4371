package coordinates

import (
	"errors"
	"math"
	"testing"
)

// TestBearing tests initial great-circle bearings
func TestBearing(t *testing.T) {
	tests := []struct {
		name      string
		from, to  Geographic
		want      float64
		tolerance float64
	}{
		{"Due north", Geographic{Latitude: 0, Longitude: 0}, Geographic{Latitude: 10, Longitude: 0}, 0, 1e-9},
		{"Due east on equator", Geographic{Latitude: 0, Longitude: 0}, Geographic{Latitude: 0, Longitude: 10}, 90, 1e-9},
		{"Due south", Geographic{Latitude: 10, Longitude: 5}, Geographic{Latitude: -10, Longitude: 5}, 180, 1e-9},
		{"Due west on equator", Geographic{Latitude: 0, Longitude: 10}, Geographic{Latitude: 0, Longitude: 0}, 270, 1e-9},
		{"London to Mecca", Geographic{Latitude: 51.5074, Longitude: -0.1278}, Geographic{Latitude: 21.4225, Longitude: 39.8262}, 119.0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.from, tt.to)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("Bearing = %.4f, want %.4f", got, tt.want)
			}
			if got < 0 || got >= 360 {
				t.Errorf("Bearing %.4f outside [0, 360)", got)
			}
		})
	}
}

// TestDistanceKm tests haversine distances
func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name      string
		from, to  Geographic
		want      float64
		tolerance float64
	}{
		{"Same point", Geographic{Latitude: 12, Longitude: 34}, Geographic{Latitude: 12, Longitude: 34}, 0, 1e-9},
		{"One degree of longitude on equator", Geographic{}, Geographic{Longitude: 1}, 111.195, 0.01},
		{"Antipodes", Geographic{Latitude: 0, Longitude: 0}, Geographic{Latitude: 0, Longitude: 180}, math.Pi * EarthRadiusKm, 1e-3},
		{"Pole to pole", Geographic{Latitude: 90}, Geographic{Latitude: -90}, math.Pi * EarthRadiusKm, 1e-3},
		{"London to Mecca", Geographic{Latitude: 51.5074, Longitude: -0.1278}, Geographic{Latitude: 21.4225, Longitude: 39.8262}, 4795, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.from, tt.to)
			if math.IsNaN(got) {
				t.Fatal("distance is NaN")
			}
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("DistanceKm = %.4f, want %.4f", got, tt.want)
			}
			back := DistanceKm(tt.to, tt.from)
			if math.Abs(back-got) > 1e-9 {
				t.Errorf("distance not symmetric: %.9f vs %.9f", got, back)
			}
		})
	}
}

func TestValidateLatLon(t *testing.T) {
	tests := []struct {
		lat, lon float64
		wantErr  bool
	}{
		{0, 0, false},
		{90, 180, false},
		{-90, -180, false},
		{90.0001, 0, true},
		{0, -180.5, true},
		{math.NaN(), 0, true},
	}

	for _, tt := range tests {
		err := ValidateLatLon(tt.lat, tt.lon)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateLatLon(%v, %v) error = %v, wantErr %v", tt.lat, tt.lon, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	}
}

func TestAngleBetween(t *testing.T) {
	x := Vector3{X: 1}
	y := Vector3{Y: 2}

	if got := AngleBetween(x, y); math.Abs(got-90) > 1e-9 {
		t.Errorf("orthogonal angle = %.6f", got)
	}
	if got := AngleBetween(x, x); got != 0 {
		t.Errorf("parallel angle = %.9f, want 0", got)
	}
	if got := AngleBetween(x, Vector3{X: -3}); math.Abs(got-180) > 1e-9 {
		t.Errorf("antiparallel angle = %.6f", got)
	}
	if got := AngleBetween(x, Vector3{}); got != 0 {
		t.Errorf("zero vector angle = %.6f, want 0", got)
	}

	// Near the celestial pole, RA differences are large but the true
	// separation is small.
	a := UnitVector(EquatorialCoordinates{RightAscension: 0, Declination: 89})
	b := UnitVector(EquatorialCoordinates{RightAscension: 12, Declination: 89})
	if got := AngleBetween(a, b); math.Abs(got-2) > 1e-9 {
		t.Errorf("polar separation = %.9f, want 2", got)
	}
}
