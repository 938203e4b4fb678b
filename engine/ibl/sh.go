package ibl

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/chewxy/math32"
	"github.com/mrjoshuak/go-openexr/half"
)

// Cosine lobe convolution per band, divided by π.
var shBandScale = [9]float32{
	1,
	2.0 / 3.0, 2.0 / 3.0, 2.0 / 3.0,
	0.25, 0.25, 0.25, 0.25, 0.25,
}

// DecodeHalfRGBA converts one RGBA16Float face into float32 texels.
//
// Parameters:
//   - data: tightly packed little-endian half floats
//   - size: the face edge length
//
// Returns:
//   - []float32: size*size*4 values
//   - error: ErrReadbackMalformed if the length does not match
func DecodeHalfRGBA(data []byte, size uint32) ([]float32, error) {
	want := int(size) * int(size) * 4 * 2
	if size == 0 || len(data) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrReadbackMalformed, len(data), want)
	}
	out := make([]float32, want/2)
	half.ConvertBytesToFloat32(out, data)
	return out, nil
}

// ProjectSH projects six RGBA faces onto the first nine SH basis functions and
// convolves them with the clamped cosine lobe. Evaluating the result gives
// irradiance divided by π.
//
// Parameters:
//   - faces: size*size*4 floats per face, in CubeFace order
//   - size: the face edge length
//
// Returns:
//   - environment.SH: the coefficients
//   - error: ErrReadbackMalformed for wrongly sized faces or non-finite texels
func ProjectSH(faces [common.CubeFaceCount][]float32, size uint32) (environment.SH, error) {
	var sh environment.SH
	want := int(size) * int(size) * 4
	var total float32
	for f, texels := range faces {
		if size == 0 || len(texels) != want {
			return sh, fmt.Errorf("%w: face %d has %d values, want %d", ErrReadbackMalformed, f, len(texels), want)
		}
		for y := uint32(0); y < size; y++ {
			for x := uint32(0); x < size; x++ {
				i := (y*size + x) * 4
				r, g, b := texels[i], texels[i+1], texels[i+2]
				if !finite(r) || !finite(g) || !finite(b) {
					return sh, fmt.Errorf("%w: non-finite texel on face %d", ErrReadbackMalformed, f)
				}
				u := (float32(x) + 0.5) / float32(size)
				v := (float32(y) + 0.5) / float32(size)
				w := common.TexelSolidAngle(x, y, size)
				basis := environment.Basis(common.FaceDirection(common.CubeFace(f), u, v))
				for k := range basis {
					bw := basis[k] * w
					sh[k][0] += r * bw
					sh[k][1] += g * bw
					sh[k][2] += b * bw
				}
				total += w
			}
		}
	}

	// the texel solid angles sum to 4π up to rounding
	norm := 4 * math32.Pi / total
	for k := range sh {
		s := shBandScale[k] * norm
		sh[k][0] *= s
		sh[k][1] *= s
		sh[k][2] *= s
	}
	return sh, nil
}

func finite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}
