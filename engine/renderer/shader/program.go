package shader

// Program is a compiled variant: a vertex and a fragment stage generated from one
// WGSL module.
type Program struct {
	key      VariantKey
	wgsl     string
	vertex   Shader
	fragment Shader
}

// Key returns the variant the program was compiled for.
func (p *Program) Key() VariantKey {
	return p.key
}

// WGSL returns the generated module both stages come from.
func (p *Program) WGSL() string {
	return p.wgsl
}

func (p *Program) Vertex() Shader {
	return p.vertex
}

func (p *Program) Fragment() Shader {
	return p.fragment
}

// Declaration returns the first declaration of type t recorded for the fragment stage.
//
// Parameters:
//   - t: the annotation type to look for
//
// Returns:
//   - Annotation: the declaration
//   - bool: false if the program declares none
func (p *Program) Declaration(t AnnotationType) (Annotation, bool) {
	for _, a := range p.fragment.Declarations() {
		if a.Type == t {
			return a, true
		}
	}
	return Annotation{}, false
}

// SourceBinding returns where the program expects its sampled source. The source
// sampler, when the variant has one, sits at binding+1 of the same group.
//
// Returns:
//   - group: the @group index
//   - binding: the @binding index of the source texture
//   - ok: false if the program samples no source
func (p *Program) SourceBinding() (group, binding int, ok bool) {
	a, found := p.Declaration(AnnotationTypeSource)
	if !found || a.Group == nil || a.Binding == nil {
		return 0, 0, false
	}
	return *a.Group, *a.Binding, true
}

// UniformBinding returns the group and binding of the uniform declared with struct
// type arg.
//
// Parameters:
//   - arg: the struct type, e.g. AnnotationArgPrefilterParams
//
// Returns:
//   - group: the @group index
//   - binding: the @binding index
//   - ok: false if the program declares no such uniform
func (p *Program) UniformBinding(arg AnnotationArg) (group, binding int, ok bool) {
	for _, a := range p.fragment.Declarations() {
		if a.Type != AnnotationTypeBindingGroup || len(a.Args) < 3 || a.Args[2] != arg {
			continue
		}
		return *a.Group, *a.Binding, true
	}
	return 0, 0, false
}
