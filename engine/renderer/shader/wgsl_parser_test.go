package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBindGroupLayoutsPrefilter(t *testing.T) {
	src, _, err := Generate(KindPrefilter, Flags{Distribution: DistributionGGX, Roughness: 0.5, SampleCount: 32})
	require.NoError(t, err)

	layouts := parseBindGroupLayouts(src, wgpu.ShaderStageFragment)
	require.Contains(t, layouts, 0)
	entries := layouts[0].Entries
	require.Len(t, entries, 3)

	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, wgpu.TextureViewDimensionCube, entries[0].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[1].Sampler.Type)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[2].Buffer.Type)
	assert.Equal(t, uint64(16), entries[2].Buffer.MinBindingSize)
}

func TestParseBindGroupLayoutsDepthSamplerIsNonFiltering(t *testing.T) {
	src, _, err := Generate(KindResample, Flags{View: View2DArray, Depth: true})
	require.NoError(t, err)

	layouts := parseBindGroupLayouts(src, wgpu.ShaderStageFragment)
	entries := layouts[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, entries[0].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeNonFiltering, entries[1].Sampler.Type)
}

func TestParseBindGroupLayoutsMultisampled(t *testing.T) {
	src, _, err := Generate(KindResample, Flags{View: View2D, Multisampled: true})
	require.NoError(t, err)

	layouts := parseBindGroupLayouts(src, wgpu.ShaderStageFragment)
	entries := layouts[0].Entries
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Texture.Multisampled)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, entries[0].Texture.SampleType)
}

func TestStructLayouts(t *testing.T) {
	structs := parseStructBlocks(stripComments(SkyboxUniformSource + EnvironmentUniformSource))
	sizes := structLayouts(structs)
	assert.Equal(t, uint64(80), sizes["SkyboxUniform"].size)
	assert.Equal(t, uint64(192), sizes["EnvironmentUniform"].size)
}

func TestParseEntryPoint(t *testing.T) {
	src, _, err := Generate(KindLUT, Flags{SampleCount: 8})
	require.NoError(t, err)
	assert.Equal(t, VertexEntryPoint, parseEntryPoint(src, ShaderTypeVertex))
	assert.Equal(t, FragmentEntryPoint, parseEntryPoint(src, ShaderTypeFragment))
}
