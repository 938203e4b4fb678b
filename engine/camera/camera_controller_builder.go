package camera

// CameraControllerOption configures an orbit controller at construction. Values
// outside the bounds are clamped once every option has been applied.
type CameraControllerOption func(*cameraControllerImpl)

// WithRadius sets the starting distance from the target.
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.radius = radius
	}
}

// WithAzimuth sets the starting angle around +Y in radians. Zero looks from +Z.
func WithAzimuth(azimuth float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the starting angle above the horizon in radians.
func WithElevation(elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.elevation = elevation
	}
}

// WithTarget sets the point the eye orbits.
func WithTarget(x, y, z float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = [3]float32{x, y, z}
	}
}

// WithRadiusBounds limits Zoom and SetRadius.
//
// Parameters:
//   - lo: the closest the eye gets to the target
//   - hi: the furthest the eye gets from the target
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithRadiusBounds(lo, hi float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRadius, cc.maxRadius = lo, hi
	}
}

// WithElevationBounds limits the elevation in radians. Keep both bounds inside
// (-π/2, π/2) or the view matrix degenerates at the poles.
//
// Parameters:
//   - lo: the lowest elevation
//   - hi: the highest elevation
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithElevationBounds(lo, hi float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minElevation, cc.maxElevation = lo, hi
	}
}

// WithRates sets how far input moves the eye. A zero rate keeps its default.
//
// Parameters:
//   - orbit: radians per OrbitLeft/Right/Up/Down call
//   - drag: radians per pixel of Drag
//   - zoom: world units per unit of Zoom
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithRates(orbit, drag, zoom float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if orbit != 0 {
			cc.orbitSpeed = orbit
		}
		if drag != 0 {
			cc.mouseSensitivity = drag
		}
		if zoom != 0 {
			cc.zoomSpeed = zoom
		}
	}
}
