package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
)

// Entry point names every template uses.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// Generate expands the template for kind into plain WGSL for flags.
//
// Parameters:
//   - kind: the program kind
//   - flags: the variant configuration
//
// Returns:
//   - string: the generated WGSL
//   - []Annotation: the declarations recorded by the pre-processor
//   - error: an error if the template is unknown or an annotation is malformed
func Generate(kind Kind, flags Flags) (string, []Annotation, error) {
	tmpl, ok := Template(kind)
	if !ok {
		return "", nil, fmt.Errorf("no template registered for %s", kind)
	}
	pp := NewPreProcessor(flags)
	src, err := pp.Process(tmpl)
	if err != nil {
		return "", nil, err
	}
	decls := append([]Annotation(nil), pp.Declarations()...)
	return src, decls, nil
}

// Compile generates and compiles the program identified by key. WGSL programs are
// checked by naga when validate is set; GLSL programs are always lowered and
// translated per entry point.
//
// Parameters:
//   - key: the variant to build
//   - validate: run naga's IR validator over the generated module
//
// Returns:
//   - *Program: the compiled vertex and fragment stages
//   - error: a *CompilationError naming the failing stage
func Compile(key VariantKey, validate bool) (*Program, error) {
	src, decls, err := Generate(key.Kind, key.Flags)
	if err != nil {
		return nil, &CompilationError{Key: key, Stage: StagePreprocess, Err: err}
	}

	vertexSource, fragmentSource := src, src
	if validate || key.Backend == BackendGLSL {
		ast, err := naga.Parse(src)
		if err != nil {
			return nil, &CompilationError{Key: key, Stage: StageParse, Err: err}
		}
		module, err := naga.LowerWithSource(ast, src)
		if err != nil {
			return nil, &CompilationError{Key: key, Stage: StageLower, Err: err}
		}
		if validate {
			issues, err := naga.Validate(module)
			if err != nil {
				return nil, &CompilationError{Key: key, Stage: StageValidate, Err: err}
			}
			if len(issues) > 0 {
				msgs := make([]string, 0, len(issues))
				for _, v := range issues {
					msgs = append(msgs, v.Error())
				}
				return nil, &CompilationError{Key: key, Stage: StageValidate, Err: errors.New(strings.Join(msgs, "; "))}
			}
		}
		if key.Backend == BackendGLSL {
			opts := glsl.Options{LangVersion: glsl.VersionES300, ForceHighPrecision: true}
			opts.EntryPoint = VertexEntryPoint
			if vertexSource, _, err = glsl.Compile(module, opts); err != nil {
				return nil, &CompilationError{Key: key, Stage: StageTranslate, Err: fmt.Errorf("%s: %w", VertexEntryPoint, err)}
			}
			opts.EntryPoint = FragmentEntryPoint
			if fragmentSource, _, err = glsl.Compile(module, opts); err != nil {
				return nil, &CompilationError{Key: key, Stage: StageTranslate, Err: fmt.Errorf("%s: %w", FragmentEntryPoint, err)}
			}
		}
	}

	name := key.String()
	return &Program{
		key:      key,
		wgsl:     src,
		vertex:   newShader(name+"/vs", ShaderTypeVertex, key.Backend, src, vertexSource, nil),
		fragment: newShader(name+"/fs", ShaderTypeFragment, key.Backend, src, fragmentSource, decls),
	}, nil
}
