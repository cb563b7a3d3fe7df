package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geomDelta = 1e-3

func TestPolarToCartesian(t *testing.T) {
	v := polarVector(0, 10)
	assert.InDelta(t, 10, v.X, geomDelta)
	assert.InDelta(t, 0, v.Y, geomDelta)

	v = polarVector(90, 10)
	assert.InDelta(t, 0, v.X, geomDelta)
	assert.InDelta(t, 10, v.Y, geomDelta)

	v = polarVector(180, 2)
	assert.InDelta(t, -2, v.X, geomDelta)
	assert.InDelta(t, 0, v.Y, geomDelta)
}

func TestPolarRoundTrip(t *testing.T) {
	for _, angle := range []float32{0, 30, 45, 90, 135, 180, 270, 359} {
		v := polarVector(angle, 5)
		assert.InDelta(t, angle, v.Angle(), geomDelta, "angle %g", angle)
		assert.InDelta(t, 5, v.Length(), geomDelta, "angle %g", angle)
	}
}

func TestAngleNormalized(t *testing.T) {
	// third-quadrant vector reads back in [0, 360)
	v := VectorValue{X: -1, Y: -1}
	assert.InDelta(t, 225, v.Angle(), geomDelta)
	assert.GreaterOrEqual(t, v.Angle(), float32(0))
	assert.Less(t, v.Angle(), float32(360))
}

func TestPointVectorAlgebra(t *testing.T) {
	p := PointValue{X: 1, Y: 2}
	v := VectorValue{X: 3, Y: 4}

	q := p.Add(v)
	assert.Equal(t, PointValue{X: 4, Y: 6}, q)

	d := q.Sub(p)
	assert.Equal(t, v, d)

	assert.InDelta(t, 5, v.Length(), geomDelta)
	assert.Equal(t, VectorValue{X: 6, Y: 8}, v.MulScalar(2))
	assert.Equal(t, VectorValue{X: -3, Y: -4}, v.MulScalar(-1))
}

func TestRotateAbout(t *testing.T) {
	center := PointValue{X: 1, Y: 1}
	p := PointValue{X: 2, Y: 1}

	r := rotateAbout(p, center, 90)
	assert.InDelta(t, 1, r.X, geomDelta)
	assert.InDelta(t, 2, r.Y, geomDelta)

	// a full turn is the identity
	r = rotateAbout(p, center, 360)
	assert.InDelta(t, p.X, r.X, geomDelta)
	assert.InDelta(t, p.Y, r.Y, geomDelta)
}

func TestRotateVector(t *testing.T) {
	v := rotateVector(VectorValue{X: 0, Y: -40}, 90)
	assert.InDelta(t, 40, v.X, geomDelta)
	assert.InDelta(t, 0, v.Y, geomDelta)

	// rotation preserves length
	require.InDelta(t, 40, v.Length(), geomDelta)
}
