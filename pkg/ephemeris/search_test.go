package ephemeris

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineAltitude peaks at 10 degrees at noon and bottoms at -10 at midnight.
func sineAltitude(t time.Time) float64 {
	hours := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	return 10 * math.Sin((hours-6)/24*2*math.Pi)
}

func TestFindAltitudeEvent(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		dir   Direction
		want  time.Time
		ok    bool
	}{
		{"Rise at six", day, day.Add(24 * time.Hour), Rise, day.Add(6 * time.Hour), true},
		{"Set at eighteen", day, day.Add(24 * time.Hour), Set, day.Add(18 * time.Hour), true},
		{"Set after start past noon", day.Add(13 * time.Hour), day.Add(36 * time.Hour), Set, day.Add(18 * time.Hour), true},
		{"No set inside short window", day.Add(7 * time.Hour), day.Add(12 * time.Hour), Set, time.Time{}, false},
		{"Empty window", day, day, Rise, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ := FindAltitudeEvent(sineAltitude, tt.start, tt.end, 0, tt.dir, 145, 10*time.Second)
			got, ok := occ.Get()
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.WithinDuration(t, tt.want, got, 10*time.Second)
			}
		})
	}
}

func TestFindAltitudeEvent_NeverCrosses(t *testing.T) {
	always := func(time.Time) float64 { return 5 }
	start := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	occ := FindAltitudeEvent(always, start, start.Add(48*time.Hour), 0, Set, 289, time.Second)
	assert.False(t, occ.IsPresent())
}

func TestFindAltitudeEvent_TargetOffset(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Crossing -5 going down: 10·sin(x) = -5 at x = 210°, i.e. 20:00.
	occ := FindAltitudeEvent(sineAltitude, day.Add(12*time.Hour), day.Add(24*time.Hour), -5, Set, 73, 5*time.Second)
	got, ok := occ.Get()
	require.True(t, ok)
	assert.WithinDuration(t, day.Add(20*time.Hour), got, 10*time.Second)
}

func TestOccurrence(t *testing.T) {
	var zero Occurrence
	assert.False(t, zero.IsPresent())
	assert.Equal(t, "absent", zero.String())

	at := time.Date(2024, 1, 11, 14, 56, 30, 0, time.UTC)
	occ := Present(at)
	got, ok := occ.Get()
	require.True(t, ok)
	assert.Equal(t, at, got)
	assert.Equal(t, "2024-01-11T14:56:30Z", occ.String())

	data, err := json.Marshal(struct {
		Sunset  Occurrence `json:"sunset"`
		Moonset Occurrence `json:"moonset"`
	}{Sunset: occ, Moonset: Absent()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sunset":"2024-01-11T14:56:30Z","moonset":null}`, string(data))
}

func TestBodyAndDirectionNames(t *testing.T) {
	assert.Equal(t, "sun", Sun.String())
	assert.Equal(t, "moon", Moon.String())
	assert.Equal(t, "rise", Rise.String())
	assert.Equal(t, "set", Set.String())
}
