package shader

import (
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// textureShape describes how a WGSL texture type is bound.
type textureShape struct {
	dimension    wgpu.TextureViewDimension
	multisampled bool
	depth        bool
}

var textureShapes = map[string]textureShape{
	"texture_2d":                    {wgpu.TextureViewDimension2D, false, false},
	"texture_2d_array":              {wgpu.TextureViewDimension2DArray, false, false},
	"texture_cube":                  {wgpu.TextureViewDimensionCube, false, false},
	"texture_cube_array":            {wgpu.TextureViewDimensionCubeArray, false, false},
	"texture_multisampled_2d":       {wgpu.TextureViewDimension2D, true, false},
	"texture_depth_2d":              {wgpu.TextureViewDimension2D, false, true},
	"texture_depth_2d_array":        {wgpu.TextureViewDimension2DArray, false, true},
	"texture_depth_cube":            {wgpu.TextureViewDimensionCube, false, true},
	"texture_depth_multisampled_2d": {wgpu.TextureViewDimension2D, true, true},
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var samplerTypes = map[string]wgpu.SamplerBindingType{
	"sampler":            wgpu.SamplerBindingTypeFiltering,
	"sampler_comparison": wgpu.SamplerBindingTypeComparison,
}

// bindingEntry builds the layout entry for one @group/@binding declaration. A
// declaration with an address space is a buffer, anything else is a sampler or a
// texture. Unknown handle types produce an entry with no resource set.
func bindingEntry(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	if addressSpace != "" {
		entry.Buffer.Type = bufferType(addressSpace)
		return entry
	}
	if st, ok := samplerTypes[typeName]; ok {
		entry.Sampler.Type = st
		return entry
	}

	base, param := splitTypeParams(typeName)
	shape, ok := textureShapes[base]
	if !ok {
		return entry
	}
	entry.Texture.ViewDimension = shape.dimension
	entry.Texture.Multisampled = shape.multisampled
	switch {
	case shape.depth:
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
	case shape.multisampled && param == "f32":
		// textureLoad only
		entry.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
	default:
		entry.Texture.SampleType = sampleTypes[param]
	}
	return entry
}

// bufferType maps "uniform", "storage" and "storage, read_write" to a binding type.
func bufferType(addressSpace string) wgpu.BufferBindingType {
	space, access, _ := strings.Cut(addressSpace, ",")
	switch strings.TrimSpace(space) {
	case "uniform":
		return wgpu.BufferBindingTypeUniform
	case "storage":
		if strings.TrimSpace(access) == "read_write" {
			return wgpu.BufferBindingTypeStorage
		}
		return wgpu.BufferBindingTypeReadOnlyStorage
	}
	return wgpu.BufferBindingTypeUndefined
}

// stripComments removes line comments and nested block comments in one pass.
// Newlines are kept so offsets into the remaining text still map to lines.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		c := source[i]
		var next byte
		if i+1 < len(source) {
			next = source[i+1]
		}
		switch {
		case c == '/' && next == '*':
			depth++
			i++
		case depth > 0 && c == '*' && next == '/':
			depth--
			i++
		case depth > 0:
			if c == '\n' {
				sb.WriteByte(c)
			}
		case c == '/' && next == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				sb.WriteByte('\n')
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
