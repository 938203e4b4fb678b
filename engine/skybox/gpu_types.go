package skybox

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUSkyboxUniform is the GPU-aligned representation of the skybox uniform buffer.
// Matches the WGSL SkyboxUniform struct layout exactly (see shader.SkyboxUniformSource).
// Size: 80 bytes (std430 / WGSL aligned).
type GPUSkyboxUniform struct {
	InverseViewProjection [16]float32 // offset  0: clip to world transform (mat4x4<f32>)
	LOD                   float32     // offset 64: sampled mip level
	Exposure              float32     // offset 68: linear exposure scale
	_pad0                 float32     // offset 72
	_pad1                 float32     // offset 76
}

// Size returns the size of the GPUSkyboxUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUSkyboxUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSkyboxUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSkyboxUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.InverseViewProjection[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(g.LOD))
	binary.LittleEndian.PutUint32(buf[68:], math.Float32bits(g.Exposure))
	return buf
}
