// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans a program
// template for @oxy: annotations, replaces them with library chunks or generated
// declarations for the variant's Flags, and collects the declarations nodes use to
// wire GPU resources to bind groups without matching on variable names.
//
// The pre-processor maintains two registries:
//   - chunkRegistry: maps AnnotationArg keys to embedded WGSL sources and, for struct
//     chunks, their resolved type names. Used by @oxy:include (to inject the source)
//     and @oxy:group (to resolve the WGSL type name in the generated declaration).
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// Names of the generated source bindings. Nodes resolve their indices through
// Program.SourceBinding.
const (
	SourceTextureVarName = "source_texture"
	SourceSamplerVarName = "source_sampler"
)

// registryEntry pairs a WGSL source string (embedded from a .wgsl asset file)
// with the resolved WGSL type name used in generated @group/@binding declarations.
type registryEntry struct {
	// Source is the raw WGSL text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations. Empty for
	// function chunks.
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	flags Flags

	// chunkRegistry maps chunk and struct argument keys to their embedded WGSL source.
	chunkRegistry map[AnnotationArg]registryEntry

	// addressSpaceRegistry maps address space argument keys to WGSL var<> syntax strings.
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group, source and target annotations during a Process
	// call. Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor turns an annotated program template into plain WGSL for one set of Flags.
type PreProcessor interface {
	// Process replaces every @oxy: annotation in source with its WGSL output.
	// Includes are expanded once each; a chunk included twice is emitted only
	// the first time.
	//
	// The declarations list is reset at the start of each call and can be retrieved
	// via Declarations() after Process returns.
	//
	// Parameters:
	//   - source: the annotated WGSL template
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed or references an unknown type
	Process(source string) (string, error)

	// Declarations returns the group, source and target annotations collected during
	// the most recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that generates code for flags.
//
// Parameters:
//   - flags: the variant configuration used by source, const and target annotations
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(flags Flags) PreProcessor {
	return &preProcessor{
		flags: flags,
		chunkRegistry: map[AnnotationArg]registryEntry{
			annotationArgFullscreen:         {Source: fullscreenSource},
			annotationArgCube:               {Source: cubeSource},
			annotationArgSampling:           {Source: samplingSource},
			annotationArgBRDF:               {Source: brdfSource},
			AnnotationArgPrefilterParams:    {Source: PrefilterParamsSource, Type: "PrefilterParams"},
			AnnotationArgSkyboxUniform:      {Source: SkyboxUniformSource, Type: "SkyboxUniform"},
			AnnotationArgEnvironmentUniform: {Source: EnvironmentUniformSource, Type: "EnvironmentUniform"},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform: "var<uniform>",
			annotationArgStorageTypeRead:    "var<storage, read>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Args[0]] {
				continue
			}
			entry, ok := p.chunkRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			included[a.Args[0]] = true
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			entry, ok := p.chunkRegistry[a.Args[2]]
			if !ok || entry.Type == "" {
				return "", fmt.Errorf("line %d: @oxy:group type %q is not a struct", i+1, a.Args[2])
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeSource:
			out = append(out, p.sourceDeclaration(*a.Group, *a.Binding))
			p.declarations = append(p.declarations, *a)
		case annotationTypeConst:
			out = append(out, p.constDeclaration(a.Args[0]))
		case AnnotationTypeTarget:
			out = append(out, p.targetDeclaration())
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// sourceDeclaration emits the source texture, its sampler when one is needed, and
// sample_source(dir, uv, lod). Cube and array sources are addressed by direction,
// 2D and multisampled sources by uv. Multisampled sources read sample 0.
func (p *preProcessor) sourceDeclaration(group, binding int) string {
	f := p.flags
	var sb strings.Builder
	texture := func(t string) {
		fmt.Fprintf(&sb, "@group(%d) @binding(%d) var %s: %s;\n", group, binding, SourceTextureVarName, t)
	}
	sampler := func() {
		fmt.Fprintf(&sb, "@group(%d) @binding(%d) var %s: sampler;\n", group, binding+1, SourceSamplerVarName)
	}

	if f.Multisampled {
		if f.Depth {
			texture("texture_depth_multisampled_2d")
		} else {
			texture("texture_multisampled_2d<f32>")
		}
		sb.WriteString("\nfn sample_source(dir: vec3<f32>, uv: vec2<f32>, lod: f32) -> vec4<f32> {\n")
		sb.WriteString("    let size = vec2<f32>(textureDimensions(" + SourceTextureVarName + "));\n")
		sb.WriteString("    let texel = vec2<i32>(clamp(uv * size, vec2<f32>(0.0, 0.0), size - vec2<f32>(1.0, 1.0)));\n")
		if f.Depth {
			sb.WriteString("    let d = textureLoad(" + SourceTextureVarName + ", texel, 0);\n")
			sb.WriteString("    return vec4<f32>(d, d, d, 1.0);\n")
		} else {
			sb.WriteString("    return textureLoad(" + SourceTextureVarName + ", texel, 0);\n")
		}
		sb.WriteString("}\n")
		return sb.String()
	}

	var textureType, coords string
	switch f.View {
	case ViewCube:
		textureType, coords = "texture_cube", "dir"
	case View2DArray:
		textureType, coords = "texture_2d_array", "p.xy, i32(p.z + 0.5)"
	default:
		textureType, coords = "texture_2d", "uv"
	}
	if f.Depth {
		texture(strings.Replace(textureType, "texture_", "texture_depth_", 1))
	} else {
		texture(textureType + "<f32>")
	}
	sampler()

	sb.WriteString("\nfn sample_source(dir: vec3<f32>, uv: vec2<f32>, lod: f32) -> vec4<f32> {\n")
	if f.View == View2DArray {
		sb.WriteString("    let p = direction_to_face_uv(dir);\n")
	}
	level := "lod"
	if f.Depth {
		level = "i32(lod)"
	}
	call := fmt.Sprintf("textureSampleLevel(%s, %s, %s, %s)", SourceTextureVarName, SourceSamplerVarName, coords, level)
	if f.Depth {
		sb.WriteString("    let d = " + call + ";\n")
		sb.WriteString("    return vec4<f32>(d, d, d, 1.0);\n")
	} else {
		sb.WriteString("    return " + call + ";\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (p *preProcessor) constDeclaration(name AnnotationArg) string {
	switch name {
	case annotationArgSampleCount:
		n := p.flags.SampleCount
		if n == 0 {
			n = 1
		}
		return "const SAMPLE_COUNT: u32 = " + strconv.FormatUint(uint64(n), 10) + "u;"
	case annotationArgRoughness:
		return "const ROUGHNESS: f32 = " + strconv.FormatFloat(float64(p.flags.Roughness), 'f', 6, 32) + ";"
	default:
		return "const DISTRIBUTION: u32 = " + strconv.Itoa(int(p.flags.Distribution)) + "u;"
	}
}

func (p *preProcessor) targetDeclaration() string {
	if p.flags.Depth {
		return `struct FragmentOutput {
    @builtin(frag_depth) depth: f32,
};

fn write_target(value: vec4<f32>) -> FragmentOutput {
    var out: FragmentOutput;
    out.depth = value.r;
    return out;
}
`
	}
	return `struct FragmentOutput {
    @location(0) color: vec4<f32>,
};

fn write_target(value: vec4<f32>) -> FragmentOutput {
    var out: FragmentOutput;
    out.color = value;
    return out;
}
`
}
