package camera

// CameraBuilderOption configures a camera at construction.
type CameraBuilderOption func(*cameraImpl)

// WithUp overrides the +Y world up vector.
//
// Parameters:
//   - x, y, z: the up direction
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = [3]float32{x, y, z}
	}
}

// WithFov sets the vertical field of view in radians, clamped like SetFov.
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens.fov = fov
	}
}

// WithAspect sets width over height. Non-positive values keep the default.
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.lens.aspect = aspect
		}
	}
}

// WithClipPlanes sets the near and far distances of the projection.
//
// Parameters:
//   - near: distance to the near plane
//   - far: distance to the far plane
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithClipPlanes(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.lens.near, c.lens.far = near, far
	}
}

// WithController attaches the controller Update reads the eye from.
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
