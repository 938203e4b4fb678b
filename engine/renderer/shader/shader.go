package shader

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader is compiled for.
type ShaderType int

const (
	// ShaderTypeVertex is the full-screen-triangle stage shared by every program.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the per-kind fragment stage.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	if t == ShaderTypeVertex {
		return "vertex"
	}
	return "fragment"
}

type shader struct {
	key          string
	stage        ShaderType
	backend      Backend
	source       string
	wgsl         string
	entryPoint   string
	layouts      map[int]wgpu.BindGroupLayoutDescriptor
	declarations []Annotation
}

// Shader is one stage of a generated program: its source in the backend language,
// the WGSL it was produced from, and the bind group layouts parsed from that WGSL.
type Shader interface {
	// Key identifies the stage of one VariantKey.
	//
	// Returns:
	//   - string: the key
	Key() string

	// Stage returns ShaderTypeVertex or ShaderTypeFragment.
	Stage() ShaderType

	// Backend returns the language Source is written in.
	Backend() Backend

	// Source returns the stage in the Backend language.
	//
	// Returns:
	//   - string: WGSL or GLSL source
	Source() string

	// WGSL returns the generated WGSL, equal to Source for BackendWGSL.
	WGSL() string

	// EntryPoint returns the stage's function name, e.g. "fs_main".
	EntryPoint() string

	// BindGroupLayoutDescriptor returns the layout of one group.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout, empty if the stage binds nothing there
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors returns every parsed layout keyed by group.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// Declarations returns the group, source and target annotations recorded while
	// the program was generated, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations
	Declarations() []Annotation
}

var _ Shader = &shader{}

// newShader builds a stage from generated WGSL. Only the fragment stage carries bind
// group layouts; the vertex stage reads nothing but vertex_index.
func newShader(key string, stage ShaderType, backend Backend, wgslSource, source string, declarations []Annotation) *shader {
	s := &shader{
		key:          key,
		stage:        stage,
		backend:      backend,
		source:       source,
		wgsl:         wgslSource,
		entryPoint:   parseEntryPoint(wgslSource, stage),
		layouts:      map[int]wgpu.BindGroupLayoutDescriptor{},
		declarations: declarations,
	}
	if stage == ShaderTypeFragment {
		s.layouts = parseBindGroupLayouts(wgslSource, wgpu.ShaderStageFragment)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Stage() ShaderType {
	return s.stage
}

func (s *shader) Backend() Backend {
	return s.backend
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) WGSL() string {
	return s.wgsl
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.layouts[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.layouts
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
