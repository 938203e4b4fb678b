package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/chewxy/math32"
)

// sphere is the eye in spherical coordinates around target.
type sphere struct {
	target    [3]float32
	radius    float32
	azimuth   float32
	elevation float32
}

type cameraControllerImpl struct {
	mu sync.RWMutex
	sphere

	minRadius, maxRadius       float32
	minElevation, maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
}

var _ CameraController = &cameraControllerImpl{}

// NewOrbitController creates a controller five units out on +Z looking at the
// origin. The default elevation bounds stop just short of the poles so the sky can
// be viewed straight up and down without the view flipping.
//
// Parameters:
//   - options: CameraControllerOption values
//
// Returns:
//   - CameraController: the controller
func NewOrbitController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		sphere:       sphere{radius: 5},
		minRadius:    0.5,
		maxRadius:    100,
		minElevation: -math32.Pi/2 + 0.01,
		maxElevation: math32.Pi/2 - 0.01,

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.5,
	}
	for _, option := range options {
		option(cc)
	}
	cc.update(func(*sphere) {})
	return cc
}

// update applies fn under the write lock and clamps the result to the bounds.
func (cc *cameraControllerImpl) update(fn func(s *sphere)) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	fn(&cc.sphere)
	cc.radius = common.Clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = common.Clamp(cc.elevation, cc.minElevation, cc.maxElevation)
}

func (cc *cameraControllerImpl) read() sphere {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.sphere
}

func (cc *cameraControllerImpl) Position() (x, y, z float32) {
	s := cc.read()
	sinElev, cosElev := math32.Sincos(s.elevation)
	sinAzim, cosAzim := math32.Sincos(s.azimuth)
	return s.target[0] + s.radius*cosElev*sinAzim,
		s.target[1] + s.radius*sinElev,
		s.target[2] + s.radius*cosElev*cosAzim
}

func (cc *cameraControllerImpl) Target() (x, y, z float32) {
	t := cc.read().target
	return t[0], t[1], t[2]
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.update(func(s *sphere) { s.target = [3]float32{x, y, z} })
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.update(func(s *sphere) { s.radius -= delta * cc.zoomSpeed })
}

func (cc *cameraControllerImpl) Drag(dx, dy float32) {
	cc.update(func(s *sphere) {
		s.azimuth -= dx * cc.mouseSensitivity
		s.elevation += dy * cc.mouseSensitivity
	})
}

func (cc *cameraControllerImpl) Orbit(horizontal, vertical int) {
	cc.update(func(s *sphere) {
		s.azimuth += float32(horizontal) * cc.orbitSpeed
		s.elevation += float32(vertical) * cc.orbitSpeed
	})
}

func (cc *cameraControllerImpl) Radius() float32 {
	return cc.read().radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.update(func(s *sphere) { s.radius = radius })
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	return cc.read().azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.update(func(s *sphere) { s.azimuth = azimuth })
}

func (cc *cameraControllerImpl) Elevation() float32 {
	return cc.read().elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.update(func(s *sphere) { s.elevation = elevation })
}
