package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/chewxy/math32"
)

const (
	minFov = 10 * math32.Pi / 180
	maxFov = 120 * math32.Pi / 180
)

// lens is the perspective the projection is built from.
type lens struct {
	fov, aspect, near, far float32
}

type cameraImpl struct {
	mu sync.RWMutex

	up         [3]float32
	lens       lens
	controller CameraController

	view   [16]float32
	skybox [16]float32
}

// Camera turns a controller's eye into the matrices the viewer draws with. Only the
// rotation of the view reaches the skybox, so orbiting turns the environment and
// moving the target does not.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	Fov() float32

	// SetFov changes the field of view, clamped to [10, 120] degrees.
	//
	// Parameters:
	//   - fov: radians
	SetFov(fov float32)

	// Aspect returns width over height.
	Aspect() float32

	// SetAspect follows a resized surface. Non-positive values are ignored.
	//
	// Parameters:
	//   - aspect: width over height
	SetAspect(aspect float32)

	// Controller returns the controller Update reads, nil if none is attached.
	Controller() CameraController

	// ViewMatrix returns the world-to-view matrix, column-major.
	ViewMatrix() [16]float32

	// SkyboxMatrix returns the inverse of the projection times the rotation-only view.
	// It maps a clip-space position on the far plane to a world-space direction.
	//
	// Returns:
	//   - [16]float32: the matrix, column-major, identity until a controller is attached
	SkyboxMatrix() [16]float32

	// Update recomputes the matrices from the controller's current eye.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera looking along the controller's orbit with a 60 degree
// field of view.
//
// Parameters:
//   - options: CameraBuilderOption values
//
// Returns:
//   - Camera: the camera with its matrices computed once
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		up:   [3]float32{0, 1, 0},
		lens: lens{fov: 60 * math32.Pi / 180, aspect: 1, near: 0.1, far: 100},
	}
	common.Identity(c.view[:])
	common.Identity(c.skybox[:])
	for _, option := range options {
		option(c)
	}
	c.lens.fov = common.Clamp(c.lens.fov, minFov, maxFov)
	c.recompute()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lens.fov
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lens.fov = common.Clamp(fov, minFov, maxFov)
	c.recompute()
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lens.aspect
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lens.aspect = aspect
	c.recompute()
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controller
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

func (c *cameraImpl) SkyboxMatrix() [16]float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skybox
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recompute()
}

// recompute rebuilds both matrices. Caller must hold the write lock.
func (c *cameraImpl) recompute() {
	if c.controller == nil {
		return
	}
	px, py, pz := c.controller.Position()
	tx, ty, tz := c.controller.Target()
	common.LookAt(c.view[:], [3]float32{px, py, pz}, [3]float32{tx, ty, tz}, c.up)

	var proj, vp [16]float32
	common.Perspective(proj[:], c.lens.fov, c.lens.aspect, c.lens.near, c.lens.far)
	rotation := c.view
	rotation[12], rotation[13], rotation[14] = 0, 0, 0
	common.Mul4(vp[:], proj[:], rotation[:])
	common.Invert4(c.skybox[:], vp[:])
}
