package camera

// CameraController places the eye on a sphere around a target. The camera reads
// Position and Target on every Update.
type CameraController interface {
	// Position returns the eye in world space.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Target returns the point the eye looks at.
	//
	// Returns:
	//   - x, y, z: target components
	Target() (x, y, z float32)

	// SetTarget moves the orbit center. The eye keeps its radius and angles.
	SetTarget(x, y, z float32)

	// Zoom moves the eye toward the target by delta times the zoom rate.
	//
	// Parameters:
	//   - delta: scroll delta, positive moves closer
	Zoom(delta float32)

	// Drag orbits by a cursor movement. Positive dx turns right and positive dy
	// looks down, matching screen coordinates.
	//
	// Parameters:
	//   - dx, dy: cursor delta in pixels
	Drag(dx, dy float32)

	// Orbit turns by whole keyboard steps of the orbit rate.
	//
	// Parameters:
	//   - horizontal: steps to the right, negative turns left
	//   - vertical: steps upward, negative turns down
	Orbit(horizontal, vertical int)

	Radius() float32
	SetRadius(radius float32)

	// Azimuth returns the angle around +Y in radians, zero on +Z.
	Azimuth() float32
	SetAzimuth(azimuth float32)

	// Elevation returns the angle above the horizon in radians.
	Elevation() float32
	SetElevation(elevation float32)
}
