package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transform(m [16]float32, v [4]float32) [3]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out[row] += m[col*4+row] * v[col]
		}
	}
	l := math32.Sqrt(out[0]*out[0] + out[1]*out[1] + out[2]*out[2])
	return [3]float32{out[0] / l, out[1] / l, out[2] / l}
}

func assertDirection(t *testing.T, want, got [3]float32) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d of %v", i, got)
	}
}

func TestOrbitControllerPosition(t *testing.T) {
	cc := NewOrbitController(WithRadius(2), WithAzimuth(math32.Pi/2))
	x, y, z := cc.Position()
	assert.InDelta(t, 2, x, 1e-5)
	assert.InDelta(t, 0, y, 1e-5)
	assert.InDelta(t, 0, z, 1e-5)

	cc.SetTarget(1, 1, 1)
	x, y, z = cc.Position()
	assert.InDelta(t, 3, x, 1e-5)
	assert.InDelta(t, 1, y, 1e-5)
	assert.InDelta(t, 1, z, 1e-5)
}

func TestOrbitControllerClamps(t *testing.T) {
	cc := NewOrbitController(WithRadiusBounds(1, 4), WithElevationBounds(-0.5, 0.5))

	cc.SetElevation(2)
	assert.Equal(t, float32(0.5), cc.Elevation())
	cc.Drag(0, -10000)
	assert.Equal(t, float32(-0.5), cc.Elevation())

	cc.Zoom(1000)
	assert.Equal(t, float32(1), cc.Radius())
	cc.SetRadius(50)
	assert.Equal(t, float32(4), cc.Radius())
}

func TestOrbitControllerDrag(t *testing.T) {
	cc := NewOrbitController(WithRates(0, 0.01, 0))
	cc.Drag(10, 0)
	assert.InDelta(t, -0.1, cc.Azimuth(), 1e-6)

	cc.Orbit(1, 0)
	assert.InDelta(t, -0.07, cc.Azimuth(), 1e-6)
}

func TestSkyboxMatrixFollowsRotationOnly(t *testing.T) {
	cc := NewOrbitController(WithRadius(5))
	cam := NewCamera(WithController(cc), WithAspect(16.0/9.0))

	far := [4]float32{0, 0, 1, 1}
	assertDirection(t, [3]float32{0, 0, -1}, transform(cam.SkyboxMatrix(), far))

	cc.SetAzimuth(math32.Pi / 2)
	cam.Update()
	assertDirection(t, [3]float32{-1, 0, 0}, transform(cam.SkyboxMatrix(), far))

	before := cam.SkyboxMatrix()
	cc.SetTarget(10, -3, 7)
	cam.Update()
	after := cam.SkyboxMatrix()
	for i := range before {
		assert.InDelta(t, before[i], after[i], 1e-4)
	}
	view := cam.ViewMatrix()
	assert.NotZero(t, view[12]+view[13]+view[14])
}

func TestCameraSettersClamp(t *testing.T) {
	cam := NewCamera()
	cam.SetFov(math32.Pi)
	assert.InDelta(t, maxFov, cam.Fov(), 1e-6)
	cam.SetFov(0)
	assert.InDelta(t, minFov, cam.Fov(), 1e-6)

	cam.SetAspect(-1)
	assert.Equal(t, float32(1), cam.Aspect())
	require.Nil(t, cam.Controller())

	var identity [16]float32
	identity[0], identity[5], identity[10], identity[15] = 1, 1, 1, 1
	assert.Equal(t, identity, cam.SkyboxMatrix())
}
