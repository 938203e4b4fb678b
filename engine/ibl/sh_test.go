package ibl

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/mrjoshuak/go-openexr/half"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantFaces(size uint32, fn func(face common.CubeFace, u, v float32) [3]float32) [common.CubeFaceCount][]float32 {
	var faces [common.CubeFaceCount][]float32
	for f := range faces {
		texels := make([]float32, size*size*4)
		for y := uint32(0); y < size; y++ {
			for x := uint32(0); x < size; x++ {
				c := fn(common.CubeFace(f), (float32(x)+0.5)/float32(size), (float32(y)+0.5)/float32(size))
				i := (y*size + x) * 4
				copy(texels[i:], []float32{c[0], c[1], c[2], 1})
			}
		}
		faces[f] = texels
	}
	return faces
}

func TestProjectSHUniformRadiance(t *testing.T) {
	faces := constantFaces(8, func(common.CubeFace, float32, float32) [3]float32 { return [3]float32{1, 0.5, 0.25} })
	sh, err := ProjectSH(faces, 8)
	require.NoError(t, err)

	for _, d := range [][3]float32{{1, 0, 0}, {0, -1, 0}, {0, 0, 1}, common.Normalize3([3]float32{1, 1, 1})} {
		got := sh.Evaluate(d)
		assert.InDelta(t, 1.0, got[0], 1e-3)
		assert.InDelta(t, 0.5, got[1], 1e-3)
		assert.InDelta(t, 0.25, got[2], 1e-3)
	}
	for k := 1; k < 9; k++ {
		assert.InDelta(t, 0, sh[k][0], 1e-3, "band coefficient %d", k)
	}
}

func TestProjectSHDirectionalLight(t *testing.T) {
	// only the upper hemisphere is lit
	faces := constantFaces(16, func(face common.CubeFace, u, v float32) [3]float32 {
		if common.FaceDirection(face, u, v)[1] > 0 {
			return [3]float32{1, 1, 1}
		}
		return [3]float32{}
	})
	sh, err := ProjectSH(faces, 16)
	require.NoError(t, err)

	up := sh.Evaluate([3]float32{0, 1, 0})
	down := sh.Evaluate([3]float32{0, -1, 0})
	assert.Greater(t, up[0], down[0])
	assert.InDelta(t, 1.0, up[0], 0.1)
	assert.InDelta(t, 0.0, down[0], 0.1)
}

func TestProjectSHRejectsMalformedFaces(t *testing.T) {
	faces := constantFaces(4, func(common.CubeFace, float32, float32) [3]float32 { return [3]float32{1, 1, 1} })
	faces[3] = faces[3][:8]
	_, err := ProjectSH(faces, 4)
	assert.ErrorIs(t, err, ErrReadbackMalformed)

	faces = constantFaces(4, func(common.CubeFace, float32, float32) [3]float32 { return [3]float32{1, 1, 1} })
	faces[0][0] = float32(math.Inf(1))
	_, err = ProjectSH(faces, 4)
	assert.ErrorIs(t, err, ErrReadbackMalformed)
}

func TestDecodeHalfRGBA(t *testing.T) {
	values := []float32{1, 0.5, 2, 1}
	data := make([]byte, len(values)*2)
	half.ConvertFloat32ToBytes(data, values)

	got, err := DecodeHalfRGBA(data, 1)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	_, err = DecodeHalfRGBA(data[:6], 1)
	assert.ErrorIs(t, err, ErrReadbackMalformed)
	_, err = DecodeHalfRGBA(nil, 0)
	assert.ErrorIs(t, err, ErrReadbackMalformed)
}

func TestEnvironmentUniformPacking(t *testing.T) {
	var p GPUPrefilterParams
	assert.Equal(t, 16, p.Size())
	assert.Len(t, p.Marshal(), 16)

	var empty GPUEnvironmentUniform
	assert.Equal(t, 192, empty.Size())
	assert.Equal(t, empty, NewGPUEnvironmentUniform(nil))

	sh := environment.SH{{1, 2, 3}}
	env := &environment.Environment{
		MipLevelCount: 9,
		LevelsReady:   4,
		SH:            &sh,
		Localized:     true,
		Bounds:        environment.Bounds{Min: [3]float32{-1, -2, -3}, Max: [3]float32{1, 2, 3}},
	}
	u := NewGPUEnvironmentUniform(env)
	assert.Equal(t, [4]float32{1, 2, 3, 0}, u.SH[0])
	assert.Equal(t, [4]float32{-1, -2, -3, 1}, u.BoundsMin)
	assert.Equal(t, [4]float32{1, 2, 3, 9}, u.BoundsMax)
	assert.Equal(t, [4]float32{4, 0, 1, 3}, u.State)
	assert.Len(t, u.Marshal(), 192)
}
