package core

import (
	"fmt"

	"github.com/chewxy/math32"
)

// PointValue is a location on the Canvas. Float32 components throughout,
// matching the surface coordinate space.
type PointValue struct {
	X, Y float32
}

func (v PointValue) String() string {
	return fmt.Sprintf("(%g, %g)", v.X, v.Y)
}

func (v PointValue) Eq(u Value) bool {
	if w, ok := u.(PointValue); ok {
		return v == w
	}
	return false
}

func (v PointValue) Add(u VectorValue) PointValue {
	return PointValue{v.X + u.X, v.Y + u.Y}
}

// Sub of two Points yields the displacement Vector between them.
func (v PointValue) Sub(u PointValue) VectorValue {
	return VectorValue{v.X - u.X, v.Y - u.Y}
}

// VectorValue is a displacement. Cartesian form is canonical; polar angle
// and length are derived reads.
type VectorValue struct {
	X, Y float32
}

func (v VectorValue) String() string {
	return fmt.Sprintf("<%g, %g>", v.X, v.Y)
}

func (v VectorValue) Eq(u Value) bool {
	if w, ok := u.(VectorValue); ok {
		return v == w
	}
	return false
}

func (v VectorValue) Add(u VectorValue) VectorValue {
	return VectorValue{v.X + u.X, v.Y + u.Y}
}

func (v VectorValue) Sub(u VectorValue) VectorValue {
	return VectorValue{v.X - u.X, v.Y - u.Y}
}

func (v VectorValue) MulScalar(s float32) VectorValue {
	return VectorValue{v.X * s, v.Y * s}
}

func (v VectorValue) Length() float32 {
	return math32.Hypot(v.X, v.Y)
}

// Angle is the vector's polar angle in degrees, normalized to [0, 360).
func (v VectorValue) Angle() float32 {
	deg := math32.Atan2(v.Y, v.X) * 180 / math32.Pi
	deg = math32.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// polarVector builds a Vector from a polar (angle in degrees, length) pair,
// normalizing to the canonical Cartesian form.
func polarVector(angleDeg, length float32) VectorValue {
	rad := angleDeg * math32.Pi / 180
	return VectorValue{
		X: length * math32.Cos(rad),
		Y: length * math32.Sin(rad),
	}
}

// rotateAbout rotates p around center by degrees (counter-clockwise).
func rotateAbout(p, center PointValue, degrees float32) PointValue {
	rad := degrees * math32.Pi / 180
	sin, cos := math32.Sincos(rad)
	dx := p.X - center.X
	dy := p.Y - center.Y
	return PointValue{
		X: center.X + dx*cos - dy*sin,
		Y: center.Y + dx*sin + dy*cos,
	}
}

// rotateVector rotates a displacement by degrees.
func rotateVector(v VectorValue, degrees float32) VectorValue {
	rad := degrees * math32.Pi / 180
	sin, cos := math32.Sincos(rad)
	return VectorValue{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}
