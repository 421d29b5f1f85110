// Package geometry provides the 2D vector and direction primitives shared by
// the scanner map, polar map, and world model assembler.
package geometry

import "math"

// Point2D is a location in the world frame, in metres.
type Point2D struct {
	X float64
	Y float64
}

// Add returns the component-wise sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the component-wise difference between two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Distance returns the Euclidean distance between two points.
func (p Point2D) Distance(other Point2D) float64 {
	d := p.Sub(other)
	return math.Hypot(d.X, d.Y)
}

// Snap quantises a point to the nearest multiple of gridSize on both axes.
func (p Point2D) Snap(gridSize float64) Point2D {
	if gridSize <= 0 {
		return p
	}
	return Point2D{
		X: math.Round(p.X/gridSize) * gridSize,
		Y: math.Round(p.Y/gridSize) * gridSize,
	}
}

// Complex is a unit-length 2D vector representing an angle. The zero value is
// invalid; use FromDeg, FromRad, or Direction to construct one.
type Complex struct {
	Re float64
	Im float64
}

// Identity is the zero-angle direction (heading 0 degrees).
var Identity = Complex{Re: 1, Im: 0}

// FromRad builds a unit direction from an angle in radians.
func FromRad(rad float64) Complex {
	return Complex{Re: math.Cos(rad), Im: math.Sin(rad)}
}

// FromDeg builds a unit direction from an angle in degrees.
func FromDeg(deg float64) Complex {
	return FromRad(deg * math.Pi / 180)
}

// ToRad returns the angle in radians in (-pi, pi].
func (c Complex) ToRad() float64 {
	return math.Atan2(c.Im, c.Re)
}

// ToDeg returns the angle in degrees in (-180, 180].
func (c Complex) ToDeg() float64 {
	return c.ToRad() * 180 / math.Pi
}

// Add composes two directions by angle addition (complex multiplication of
// unit vectors), preserving unit magnitude.
func (c Complex) Add(other Complex) Complex {
	//1.- Multiplying two unit complex numbers rotates by the sum of their angles.
	return normalise(Complex{
		Re: c.Re*other.Re - c.Im*other.Im,
		Im: c.Re*other.Im + c.Im*other.Re,
	})
}

// Sub composes two directions by angle subtraction (multiplication by the
// conjugate), preserving unit magnitude.
func (c Complex) Sub(other Complex) Complex {
	//1.- Multiplying by the conjugate of other rotates by the angle difference.
	return normalise(Complex{
		Re: c.Re*other.Re + c.Im*other.Im,
		Im: c.Im*other.Re - c.Re*other.Im,
	})
}

// Clamp returns the direction clamped to within +/- limit of zero heading,
// saturating at the boundary when the angle exceeds it.
func (c Complex) Clamp(limitDeg float64) Complex {
	deg := c.ToDeg()
	if deg > limitDeg {
		deg = limitDeg
	} else if deg < -limitDeg {
		deg = -limitDeg
	}
	return FromDeg(deg)
}

// Direction returns the unit direction pointing from "from" towards "to". If
// the two points coincide, Identity is returned.
func Direction(from, to Point2D) Complex {
	d := to.Sub(from)
	if d.X == 0 && d.Y == 0 {
		return Identity
	}
	return FromRad(math.Atan2(d.Y, d.X))
}

func normalise(c Complex) Complex {
	length := math.Hypot(c.Re, c.Im)
	if length == 0 {
		return Identity
	}
	return Complex{Re: c.Re / length, Im: c.Im / length}
}

// NormalizeRad wraps an angle in radians into [-pi, pi).
func NormalizeRad(rad float64) float64 {
	twoPi := 2 * math.Pi
	rad = math.Mod(rad+math.Pi, twoPi)
	if rad < 0 {
		rad += twoPi
	}
	return rad - math.Pi
}

// Clip clamps x into [lo, hi].
func Clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
