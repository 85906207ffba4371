package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/hilalscope/pkg/coordinates"
	"github.com/unklstewy/hilalscope/pkg/ephemeris"
	"github.com/unklstewy/hilalscope/pkg/ephemeris/ephemeristest"
)

func TestMoonAgeDays(t *testing.T) {
	assert.Equal(t, 0.0, MoonAgeDays(0))
	assert.InDelta(t, 14.765, MoonAgeDays(180), 1e-9)
	assert.InDelta(t, 14.8, MoonAgeDays(180), 0.05)
	assert.InDelta(t, 7.3825, MoonAgeDays(90), 1e-9)
}

func TestPhaseName(t *testing.T) {
	tests := []struct {
		phase float64
		want  string
	}{
		{0, "New Moon"},
		{10, "New Moon"},
		{30, "Waxing Crescent"},
		{90, "First Quarter"},
		{135, "Waxing Gibbous"},
		{180, "Full Moon"},
		{225, "Waning Gibbous"},
		{270, "Last Quarter"},
		{320, "Waning Crescent"},
		{350, "New Moon"},
		{-10, "New Moon"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PhaseName(tt.phase), "phase %.1f", tt.phase)
	}
}

func TestCompute_NewMoon(t *testing.T) {
	stub := &ephemeristest.Stub{PhaseAngle: 0, Illumination: 0}
	s := NewCalculator(stub, 1).Compute(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), 21.4225, 39.8262)

	assert.Equal(t, 0.0, s.AgeDays)
	assert.Equal(t, 0.0, s.Illumination)
	assert.Equal(t, "New Moon", s.PhaseName)
	assert.Equal(t, time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC), s.Date)
}

func TestCompute_FullMoon(t *testing.T) {
	stub := &ephemeristest.Stub{PhaseAngle: 180, Illumination: 1}
	s := NewCalculator(stub, 1).Compute(time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), 0, 0)

	assert.InDelta(t, 14.8, s.AgeDays, 0.05)
	assert.InDelta(t, 100, s.Illumination, 1e-9)
	assert.Equal(t, "Full Moon", s.PhaseName)
}

func TestCompute_AbsentEventsPropagate(t *testing.T) {
	sunset := time.Date(2024, 1, 13, 14, 58, 0, 0, time.UTC)
	var windows []float64

	stub := &ephemeristest.Stub{
		PhaseAngle:   25,
		Illumination: 0.05,
		RiseSet: func(body ephemeris.Body, _ coordinates.Observer, dir ephemeris.Direction, start time.Time, windowDays float64) ephemeris.Occurrence {
			windows = append(windows, windowDays)
			assert.Equal(t, time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC), start)
			if body == ephemeris.Sun && dir == ephemeris.Set {
				return ephemeris.Present(sunset)
			}
			return ephemeris.Absent()
		},
	}

	s := NewCalculator(stub, 2).Compute(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), 69.6, 18.9)

	assert.True(t, s.Sunset.IsPresent())
	assert.False(t, s.Moonrise.IsPresent())
	assert.False(t, s.Moonset.IsPresent())
	assert.Equal(t, []float64{2, 2, 2}, windows)

	_, ok := s.LagTime()
	assert.False(t, ok)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"moonrise":null`)
	assert.Contains(t, string(data), `"sunset":"2024-01-13T14:58:00Z"`)
}

func TestLagTime(t *testing.T) {
	sunset := time.Date(2024, 1, 13, 14, 58, 0, 0, time.UTC)

	s := Summary{Sunset: ephemeris.Present(sunset), Moonset: ephemeris.Present(sunset.Add(95 * time.Minute))}
	lag, ok := s.LagTime()
	require.True(t, ok)
	assert.Equal(t, 95*time.Minute, lag)

	s.Moonset = ephemeris.Present(sunset.Add(-10 * time.Minute))
	_, ok = s.LagTime()
	assert.False(t, ok)
}

func TestNewCalculator_DefaultWindow(t *testing.T) {
	c := NewCalculator(&ephemeristest.Stub{}, 0)
	assert.Equal(t, 1.0, c.windowDays)
}
