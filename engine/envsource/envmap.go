package envsource

import (
	"fmt"

	"github.com/mrjoshuak/go-openexr/exr"
)

// FromEnvMap resamples a lat-long or cube-strip environment image to a cubemap.
//
// Parameters:
//   - label: a debug label
//   - img: the environment image, its Type selects the projection
//   - size: the face size, zero derives it from the image
//
// Returns:
//   - *Cubemap: the cubemap
//   - error: an error for empty images or non-finite texels
func FromEnvMap(label string, img *exr.EnvMapImage, size uint32) (*Cubemap, error) {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrInvalidCubemap, label)
	}
	if size == 0 {
		size = defaultFaceSize(img)
	}
	return build(label, size, func(d [3]float32) [4]float32 {
		c := img.Lookup(exr.V3f{X: d[0], Y: d[1], Z: d[2]})
		return [4]float32{c.R, c.G, c.B, 1}
	})
}

// FromLatLong resamples an equirectangular RGBA image to a cubemap.
//
// Parameters:
//   - label: a debug label
//   - width, height: the panorama dimensions, usually 2:1
//   - pix: row-major RGBA texels
//   - size: the face size, zero derives it from height
//
// Returns:
//   - *Cubemap: the cubemap
//   - error: an error if pix does not hold width*height texels
func FromLatLong(label string, width, height int, pix []float32, size uint32) (*Cubemap, error) {
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: %q holds %d floats for a %dx%d panorama", ErrInvalidCubemap, label, len(pix), width, height)
	}
	img := exr.NewEnvMapImage(exr.EnvMapLatLong, width, height)
	for i := range img.Pixels {
		img.Pixels[i] = exr.RGBA{R: pix[i*4], G: pix[i*4+1], B: pix[i*4+2], A: pix[i*4+3]}
	}
	return FromEnvMap(label, img, size)
}

func defaultFaceSize(img *exr.EnvMapImage) uint32 {
	if img.Type == exr.EnvMapCube {
		return uint32(exr.CubeSizeOfFace(img.DataWindow()))
	}
	return uint32(max(img.Height/2, 1))
}
