// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive formula library injection, flag-dependent source bindings,
// compile-time constants and render target declarations. The parsed results are stored
// as Annotation values and consumed by the PreProcessor and by nodes that need to
// resolve binding indices without matching on variable names.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects a chunk of the shared formula library at the
	// annotation site. It is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <chunk>
	//
	// Example: //@oxy:include sampling
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// for a registered uniform struct and records a declaration.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 2 storage_uniform params prefilter_params
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeSource declares the sampled source texture at <binding> and, for
	// filterable sources, its sampler at <binding>+1. The texture type follows the
	// variant's View, Multisampled and Depth flags, and a sample_source function is
	// emitted that hides the differences between them.
	//
	// Syntax: //@oxy:source <group> <binding>
	//
	// Example: //@oxy:source 0 0
	AnnotationTypeSource AnnotationType = "source"

	// annotationTypeConst emits a module-scope WGSL constant whose value comes from
	// the variant's Flags.
	//
	// Syntax: //@oxy:const <name>
	//
	// Example: //@oxy:const sample_count
	annotationTypeConst AnnotationType = "const"

	// AnnotationTypeTarget emits the FragmentOutput struct and a write_target helper.
	// Color variants write @location(0), depth variants write @builtin(frag_depth).
	//
	// Syntax: //@oxy:target
	AnnotationTypeTarget AnnotationType = "target"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = library chunk (e.g. "cube")
	//   - group:   [0] = address space, [1] = var name, [2] = struct type key
	//   - const:   [0] = constant name
	//   - source, target: none
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group and source annotations. Nil otherwise.
	Group *int

	// Binding is the @binding index for group and source annotations. Nil otherwise.
	Binding *int
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Library chunks ──────────────────────────────────────────────────────────────
// Each chunk is an embedded .wgsl asset under assets/.

const (
	// annotationArgFullscreen is the full-screen-triangle vertex stage.
	annotationArgFullscreen AnnotationArg = "fullscreen"

	// annotationArgCube holds the face/direction mapping shared with common.FaceDirection.
	annotationArgCube AnnotationArg = "cube"

	// annotationArgSampling holds the low-discrepancy sequence and the importance samplers.
	annotationArgSampling AnnotationArg = "sampling"

	// annotationArgBRDF holds the visibility terms the LUT integrates.
	annotationArgBRDF AnnotationArg = "brdf"
)

// ── Struct type arguments ──────────────────────────────────────────────────────

const (
	// AnnotationArgPrefilterParams identifies the PrefilterParams uniform struct.
	AnnotationArgPrefilterParams AnnotationArg = "prefilter_params"

	// AnnotationArgSkyboxUniform identifies the SkyboxUniform struct.
	AnnotationArgSkyboxUniform AnnotationArg = "skybox_uniform"

	// AnnotationArgEnvironmentUniform identifies the EnvironmentUniform struct that
	// shading code binds to read the published environment.
	AnnotationArgEnvironmentUniform AnnotationArg = "environment_uniform"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead    AnnotationArg = "storage_read"
)

// ── Constant names ─────────────────────────────────────────────────────────────

const (
	// annotationArgSampleCount emits `const SAMPLE_COUNT: u32`.
	annotationArgSampleCount AnnotationArg = "sample_count"

	// annotationArgRoughness emits `const ROUGHNESS: f32`.
	annotationArgRoughness AnnotationArg = "roughness"

	// annotationArgDistribution emits `const DISTRIBUTION: u32` (0 none, 1 ggx, 2 charlie).
	annotationArgDistribution AnnotationArg = "distribution"
)

// validChunks lists all AnnotationArg values accepted by @oxy:include. Struct types
// are includable as well, so a shader can declare a struct without binding it.
var validChunks = []AnnotationArg{
	annotationArgFullscreen,
	annotationArgCube,
	annotationArgSampling,
	annotationArgBRDF,
	AnnotationArgPrefilterParams,
	AnnotationArgSkyboxUniform,
	AnnotationArgEnvironmentUniform,
}

// validStructTypes lists all AnnotationArg values accepted as the type of an @oxy:group annotation.
var validStructTypes = []AnnotationArg{
	AnnotationArgPrefilterParams,
	AnnotationArgSkyboxUniform,
	AnnotationArgEnvironmentUniform,
}

// validAddressSpaces lists all AnnotationArg values accepted as address
// space arguments in @oxy:group annotations.
var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
}

// validConstants lists all AnnotationArg values accepted by @oxy:const.
var validConstants = []AnnotationArg{
	annotationArgSampleCount,
	annotationArgRoughness,
	annotationArgDistribution,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validChunks, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown library chunk %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case string(AnnotationTypeSource):
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy source annotation requires exactly two arguments (group, binding)", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		return &Annotation{
			Type:    AnnotationTypeSource,
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case string(annotationTypeConst):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy const annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validConstants, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown constant %q in @oxy const annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeConst,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeTarget):
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy target annotation takes no arguments", lineNum)
		}
		return &Annotation{Type: AnnotationTypeTarget, Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

func parseGroupBinding(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q: %v", lineNum, groupArg, err)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q: %v", lineNum, bindingArg, err)
	}
	if group < 0 || binding < 0 {
		return 0, 0, fmt.Errorf("line %d: group and binding must be non-negative", lineNum)
	}
	return group, binding, nil
}
