package ibl

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
)

// GPUPrefilterParams is the per-level uniform of the prefilter variants.
// Matches the WGSL PrefilterParams struct layout exactly (see shader.PrefilterParamsSource).
// Size: 16 bytes.
type GPUPrefilterParams struct {
	SourceSize     float32 // offset  0: face size of level 0 of the source cube
	SourceMipCount float32 // offset  4: number of source levels the sampler may pick
	OutputSize     float32 // offset  8: face size of the level being written
	LODBias        float32 // offset 12: added to the filtered importance sampling level
}

// Size returns the size of the GPUPrefilterParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUPrefilterParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPrefilterParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUPrefilterParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.SourceSize))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.SourceMipCount))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.OutputSize))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.LODBias))
	return buf
}

// GPUEnvironmentUniform is the uniform shading binds to read the published environment.
// Matches the WGSL EnvironmentUniform struct layout exactly (see shader.EnvironmentUniformSource).
// Size: 192 bytes.
type GPUEnvironmentUniform struct {
	SH        [9][4]float32 // offset   0: SH coefficients, rgb + unused w
	BoundsMin [4]float32    // offset 144: xyz = min, w = 1 when localized
	BoundsMax [4]float32    // offset 160: xyz = max, w = mip level count
	State     [4]float32    // offset 176: levels ready, complete, has sh, max sample level
}

// NewGPUEnvironmentUniform packs env. A nil env packs the empty environment.
//
// Parameters:
//   - env: the published environment
//
// Returns:
//   - GPUEnvironmentUniform: the packed uniform
func NewGPUEnvironmentUniform(env *environment.Environment) GPUEnvironmentUniform {
	var g GPUEnvironmentUniform
	if env == nil {
		return g
	}
	if env.SH != nil {
		for i, c := range env.SH {
			g.SH[i] = [4]float32{c[0], c[1], c[2], 0}
		}
		g.State[2] = 1
	}
	g.BoundsMin = [4]float32{env.Bounds.Min[0], env.Bounds.Min[1], env.Bounds.Min[2], boolFloat(env.Localized)}
	g.BoundsMax = [4]float32{env.Bounds.Max[0], env.Bounds.Max[1], env.Bounds.Max[2], float32(env.MipLevelCount)}
	g.State[0] = float32(env.LevelsReady)
	g.State[1] = boolFloat(env.Complete)
	if lvl, ok := env.MaxSampleLevel(); ok {
		g.State[3] = float32(lvl)
	}
	return g
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

// Size returns the size of the GPUEnvironmentUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (192)
func (g *GPUEnvironmentUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUEnvironmentUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 192-byte buffer ready for GPU upload
func (g *GPUEnvironmentUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	off := 0
	put := func(v [4]float32) {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	for _, c := range g.SH {
		put(c)
	}
	put(g.BoundsMin)
	put(g.BoundsMax)
	put(g.State)
	return buf
}
