package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func process(t *testing.T, flags Flags, src string) (string, []Annotation) {
	t.Helper()
	pp := NewPreProcessor(flags)
	out, err := pp.Process(src)
	require.NoError(t, err)
	return out, pp.Declarations()
}

func TestProcessIncludesOnce(t *testing.T) {
	out, _ := process(t, Flags{}, "//@oxy:include cube\n//@oxy:include cube\n")
	assert.Equal(t, 1, strings.Count(out, "fn face_direction("))
	assert.NotContains(t, out, "@oxy:")
}

func TestProcessGroupDeclaration(t *testing.T) {
	out, decls := process(t, Flags{}, "//@oxy:include prefilter_params\n//@oxy:group 0 2 storage_uniform params prefilter_params\n")
	assert.Contains(t, out, "@group(0) @binding(2) var<uniform> params: PrefilterParams;")
	require.Len(t, decls, 1)
	assert.Equal(t, AnnotationTypeBindingGroup, decls[0].Type)
}

func TestProcessConstants(t *testing.T) {
	flags := Flags{Distribution: DistributionCharlie, Roughness: 0.25, SampleCount: 64}
	out, decls := process(t, flags, "//@oxy:const sample_count\n//@oxy:const roughness\n//@oxy:const distribution\n")
	assert.Contains(t, out, "const SAMPLE_COUNT: u32 = 64u;")
	assert.Contains(t, out, "const ROUGHNESS: f32 = 0.250000;")
	assert.Contains(t, out, "const DISTRIBUTION: u32 = 2u;")
	assert.Empty(t, decls)

	out, _ = process(t, Flags{}, "//@oxy:const sample_count\n")
	assert.Contains(t, out, "const SAMPLE_COUNT: u32 = 1u;")
}

func TestProcessSourceViews(t *testing.T) {
	cases := []struct {
		name    string
		flags   Flags
		texture string
		call    string
		sampler bool
	}{
		{"cube", Flags{View: ViewCube}, "texture_cube<f32>", "textureSampleLevel(source_texture, source_sampler, dir, lod)", true},
		{"array", Flags{View: View2DArray}, "texture_2d_array<f32>", "direction_to_face_uv(dir)", true},
		{"2d", Flags{View: View2D}, "texture_2d<f32>", "textureSampleLevel(source_texture, source_sampler, uv, lod)", true},
		{"ms", Flags{View: View2D, Multisampled: true}, "texture_multisampled_2d<f32>", "textureLoad(source_texture, texel, 0)", false},
		{"depth cube", Flags{View: ViewCube, Depth: true}, "texture_depth_cube", "i32(lod)", true},
		{"depth ms", Flags{Multisampled: true, Depth: true}, "texture_depth_multisampled_2d", "textureLoad(source_texture, texel, 0)", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, decls := process(t, tc.flags, "//@oxy:source 0 0\n")
			assert.Contains(t, out, "@group(0) @binding(0) var source_texture: "+tc.texture+";")
			assert.Contains(t, out, tc.call)
			assert.Contains(t, out, "fn sample_source(dir: vec3<f32>, uv: vec2<f32>, lod: f32) -> vec4<f32>")
			if tc.sampler {
				assert.Contains(t, out, "@group(0) @binding(1) var source_sampler: sampler;")
			} else {
				assert.NotContains(t, out, "source_sampler")
			}
			require.Len(t, decls, 1)
			assert.Equal(t, AnnotationTypeSource, decls[0].Type)
		})
	}
}

func TestProcessTarget(t *testing.T) {
	out, _ := process(t, Flags{}, "//@oxy:target\n")
	assert.Contains(t, out, "@location(0) color: vec4<f32>")

	out, _ = process(t, Flags{Depth: true}, "//@oxy:target\n")
	assert.Contains(t, out, "@builtin(frag_depth) depth: f32")
	assert.NotContains(t, out, "@location(0)")
}

func TestProcessResetsDeclarations(t *testing.T) {
	pp := NewPreProcessor(Flags{})
	_, err := pp.Process("//@oxy:target\n//@oxy:source 0 0\n")
	require.NoError(t, err)
	assert.Len(t, pp.Declarations(), 2)

	_, err = pp.Process("//@oxy:target\n")
	require.NoError(t, err)
	assert.Len(t, pp.Declarations(), 1)
}

func TestProcessReportsLine(t *testing.T) {
	_, err := NewPreProcessor(Flags{}).Process("fn a() {}\n//@oxy:include nope\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
