package coordinates

import "math"

// Vector3 is a Cartesian direction in the equatorial frame.
type Vector3 struct {
	X, Y, Z float64
}

// UnitVector converts right ascension (hours) and declination (degrees)
// to a unit direction vector.
func UnitVector(eq EquatorialCoordinates) Vector3 {
	ra, dec := eq.ToRadians()
	cosDec := math.Cos(dec)
	return Vector3{
		X: cosDec * math.Cos(ra),
		Y: cosDec * math.Sin(ra),
		Z: math.Sin(dec),
	}
}

// Dot returns the scalar product of v and w.
func (v Vector3) Dot(w Vector3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Length returns the Euclidean norm of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// AngleBetween returns the angle between two direction vectors in degrees.
// Vectors need not be normalized. A zero vector yields 0.
func AngleBetween(a, b Vector3) float64 {
	la, lb := a.Length(), b.Length()
	if la == 0 || lb == 0 {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	// Rounding can push |cos| a hair past 1 for (anti)parallel vectors.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * RadiansToDegrees
}
