package mechanism

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const degToRad = math.Pi / 180

func radians(deg float64) float64 { return deg * degToRad }

// Rotate turns v counter-clockwise about the origin by deg degrees.
func Rotate(v r2.Vec, deg float64) r2.Vec {
	return r2.Rotate(v, radians(deg), r2.Vec{})
}

// RotateX is the x component of (x, y) rotated by deg degrees.
func RotateX(x, y, deg float64) float64 {
	return Rotate(r2.Vec{X: x, Y: y}, deg).X
}

// RotateY is the y component of (x, y) rotated by deg degrees.
func RotateY(x, y, deg float64) float64 {
	return Rotate(r2.Vec{X: x, Y: y}, deg).Y
}

// reach is the screen-space offset, in pixels, of a segment of length
// meters at deg. Products are taken as length*trig*ppm so truncation lands
// on the same pixel as the reference drawing. y is negated because screen
// y grows downward.
func reach(length, deg, ppm float64) r2.Vec {
	rad := radians(deg)
	return r2.Vec{X: length * math.Cos(rad) * ppm, Y: -(length * math.Sin(rad) * ppm)}
}
