package common

import "github.com/chewxy/math32"

// FaceDirection maps a texel-space coordinate on a cube face to a unit direction.
// u and v are in [0, 1] with v growing downwards, matching the render-target layout
// the full-screen triangle writes and the layer order of CubeFace.
//
// Parameters:
//   - face: the cube face
//   - u, v: normalized face coordinates
//
// Returns:
//   - [3]float32: the normalized direction through (u, v)
func FaceDirection(face CubeFace, u, v float32) [3]float32 {
	s := 2*u - 1
	t := 2*v - 1
	var d [3]float32
	switch face {
	case FacePositiveX:
		d = [3]float32{1, -t, -s}
	case FaceNegativeX:
		d = [3]float32{-1, -t, s}
	case FacePositiveY:
		d = [3]float32{s, 1, t}
	case FaceNegativeY:
		d = [3]float32{s, -1, -t}
	case FacePositiveZ:
		d = [3]float32{s, -t, 1}
	default:
		d = [3]float32{-s, -t, -1}
	}
	return Normalize3(d)
}

// DirectionToFace is the inverse of FaceDirection: it returns the face a direction
// falls on and the normalized (u, v) coordinate within that face.
//
// Parameters:
//   - d: a direction, not necessarily normalized
//
// Returns:
//   - CubeFace: the face on the direction's major axis
//   - float32, float32: the face coordinates in [0, 1]
func DirectionToFace(d [3]float32) (CubeFace, float32, float32) {
	ax, ay, az := math32.Abs(d[0]), math32.Abs(d[1]), math32.Abs(d[2])
	var face CubeFace
	var s, t float32
	switch {
	case ax >= ay && ax >= az:
		if ax == 0 {
			return FacePositiveX, 0.5, 0.5
		}
		if d[0] > 0 {
			face, s, t = FacePositiveX, -d[2]/ax, -d[1]/ax
		} else {
			face, s, t = FaceNegativeX, d[2]/ax, -d[1]/ax
		}
	case ay >= az:
		if d[1] > 0 {
			face, s, t = FacePositiveY, d[0]/ay, d[2]/ay
		} else {
			face, s, t = FaceNegativeY, d[0]/ay, -d[2]/ay
		}
	default:
		if d[2] > 0 {
			face, s, t = FacePositiveZ, d[0]/az, -d[1]/az
		} else {
			face, s, t = FaceNegativeZ, -d[0]/az, -d[1]/az
		}
	}
	return face, (s + 1) / 2, (t + 1) / 2
}

// TexelSolidAngle returns the solid angle subtended by texel (x, y) of a cube face of the given size.
func TexelSolidAngle(x, y, size uint32) float32 {
	inv := 1 / float32(size)
	x0 := 2*float32(x)*inv - 1
	y0 := 2*float32(y)*inv - 1
	x1 := x0 + 2*inv
	y1 := y0 + 2*inv
	return areaElement(x0, y0) - areaElement(x0, y1) - areaElement(x1, y0) + areaElement(x1, y1)
}

func areaElement(x, y float32) float32 {
	return math32.Atan2(x*y, math32.Sqrt(x*x+y*y+1))
}
