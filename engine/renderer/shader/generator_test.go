package shader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileValidatesColorVariants(t *testing.T) {
	keys := []VariantKey{
		{Kind: KindResample, Flags: Flags{View: ViewCube}},
		{Kind: KindResample, Flags: Flags{View: View2D}},
		{Kind: KindPrefilter, Flags: Flags{Distribution: DistributionGGX, Roughness: 0.5, SampleCount: 64}},
		{Kind: KindPrefilter, Flags: Flags{Distribution: DistributionCharlie, Roughness: 1, SampleCount: 16}},
		{Kind: KindLUT, Flags: Flags{SampleCount: 32}},
		{Kind: KindMipmap, Flags: Flags{View: View2D}},
		{Kind: KindSkybox, Flags: Flags{View: ViewCube}},
	}
	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			p, err := Compile(key, true)
			require.NoError(t, err)
			assert.Equal(t, key, p.Key())
			assert.Equal(t, VertexEntryPoint, p.Vertex().EntryPoint())
			assert.Equal(t, FragmentEntryPoint, p.Fragment().EntryPoint())
			assert.Equal(t, p.WGSL(), p.Fragment().Source())
			assert.Empty(t, p.Vertex().BindGroupLayoutDescriptors())
			assert.Equal(t, ShaderTypeFragment, p.Fragment().Stage())
			_, ok := p.Declaration(AnnotationTypeTarget)
			assert.True(t, ok)
		})
	}
}

func TestCompileGLSL(t *testing.T) {
	key := VariantKey{Backend: BackendGLSL, Kind: KindResample, Flags: Flags{View: ViewCube}}
	p, err := Compile(key, false)
	require.NoError(t, err)
	assert.Contains(t, p.Vertex().Source(), "#version 300 es")
	assert.Contains(t, p.Fragment().Source(), "#version 300 es")
	assert.NotEqual(t, p.WGSL(), p.Fragment().Source())
	assert.Equal(t, BackendGLSL, p.Fragment().Backend())
}

func TestCompileReportsStage(t *testing.T) {
	_, err := Compile(VariantKey{Kind: Kind(99)}, true)
	var ce *CompilationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StagePreprocess, ce.Stage)
}

func TestFlagsKey(t *testing.T) {
	f := Flags{View: View2DArray, Depth: true, Distribution: DistributionGGX, Roughness: 0.25, SampleCount: 1024}
	assert.Equal(t, "2d_array|ms=0|depth=1|ggx|r=0.2500|n=1024", f.Key())
	assert.Equal(t, "glsl/prefilter/"+f.Key(), VariantKey{Backend: BackendGLSL, Kind: KindPrefilter, Flags: f}.String())
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend(" GLES ")
	require.NoError(t, err)
	assert.Equal(t, BackendGLSL, b)
	_, err = ParseBackend("metal")
	assert.Error(t, err)
}
