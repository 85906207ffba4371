package ephemeris

import "time"

// AltitudeFunc returns the altitude in degrees at time t.
type AltitudeFunc func(t time.Time) float64

// FindAltitudeEvent scans [start, end] in steps and returns the first
// instant where f crosses targetDeg in the requested direction, refined by
// bisection to within tol.
//
// A crossing shorter than one sample interval can be missed; callers choose
// steps small enough for the body they track.
func FindAltitudeEvent(f AltitudeFunc, start, end time.Time, targetDeg float64, dir Direction, steps int, tol time.Duration) Occurrence {
	if !start.Before(end) {
		return Absent()
	}
	if steps < 2 {
		steps = 2
	}

	interval := end.Sub(start) / time.Duration(steps-1)
	prevT := start
	prevAlt := f(prevT) - targetDeg

	for i := 1; i < steps; i++ {
		t := start.Add(time.Duration(i) * interval)
		if i == steps-1 {
			t = end
		}
		alt := f(t) - targetDeg

		if crosses(prevAlt, alt, dir) {
			return bisect(f, prevT, t, prevAlt, targetDeg, dir, tol)
		}
		prevT, prevAlt = t, alt
	}

	return Absent()
}

func crosses(a1, a2 float64, dir Direction) bool {
	if dir == Rise {
		return a1 < 0 && a2 >= 0
	}
	return a1 > 0 && a2 <= 0
}

func bisect(f AltitudeFunc, a, b time.Time, altA, targetDeg float64, dir Direction, tol time.Duration) Occurrence {
	if tol <= 0 {
		tol = time.Second
	}
	for b.Sub(a) > tol {
		mid := a.Add(b.Sub(a) / 2)
		altM := f(mid) - targetDeg

		if crosses(altA, altM, dir) {
			b = mid
		} else {
			a, altA = mid, altM
		}
	}
	return Present(a.Add(b.Sub(a) / 2))
}
