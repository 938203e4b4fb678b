// Package pipeline describes the render pipelines the IBL passes draw with. Every
// pass is a full-screen triangle into a single target, so a pipeline is fully
// identified by the program it runs and the format and sample count it writes.
package pipeline

import (
	"strconv"

	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type pipeline struct {
	pipelineKey string

	// vertexShader and fragmentShader must be set before registering the pipeline.
	vertexShader, fragmentShader shader.Shader

	// Depth formats turn the target into a depth attachment written through frag_depth.
	targetFormat wgpu.TextureFormat
	sampleCount  uint32

	// renderPipeline is set by the renderer on registration.
	renderPipeline any
}

// Pipeline is a render pipeline drawing one generated program into one target format.
type Pipeline interface {
	// PipelineKey returns the cache key, see Key.
	//
	// Returns:
	//   - string: the key
	PipelineKey() string

	// Shader retrieves the shader for a stage.
	//
	// Parameters:
	//   - shaderType: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the shader, nil if the stage is not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// TargetFormat returns the format of the render target.
	//
	// Returns:
	//   - wgpu.TextureFormat: the target format
	TargetFormat() wgpu.TextureFormat

	// SampleCount returns the sample count of the target.
	//
	// Returns:
	//   - uint32: the sample count, 1 for offscreen targets
	SampleCount() uint32

	// DepthTarget reports whether the target is a depth attachment.
	//
	// Returns:
	//   - bool: true for depth target formats
	DepthTarget() bool

	// Pipeline returns the backend pipeline object for the backend to type assert.
	//
	// Returns:
	//   - any: the backend pipeline, nil until registered
	Pipeline() any

	// SetRenderPipeline stores the backend pipeline object.
	//
	// Parameters:
	//   - p: the backend render pipeline
	SetRenderPipeline(p any)
}

var _ Pipeline = &pipeline{}

// Key builds the cache key of the pipeline drawing variant into targets of format.
//
// Parameters:
//   - variant: the compiled program's key
//   - format: the render target format
//
// Returns:
//   - string: the pipeline key
func Key(variant shader.VariantKey, format wgpu.TextureFormat) string {
	return variant.String() + "@" + strconv.Itoa(int(format))
}

// NewPipeline creates an unregistered pipeline. Without options it targets a
// single-sampled RGBA16Float texture, the format of every prefiltered level.
//
// Parameters:
//   - pipelineKey: the cache key
//   - opts: PipelineBuilderOption values
//
// Returns:
//   - Pipeline: the pipeline, registered through the renderer's RegisterPipelines
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		targetFormat: wgpu.TextureFormatRGBA16Float,
		sampleCount:  1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Pipeline() any {
	return p.renderPipeline
}

func (p *pipeline) TargetFormat() wgpu.TextureFormat {
	return p.targetFormat
}

func (p *pipeline) SampleCount() uint32 {
	return p.sampleCount
}

func (p *pipeline) DepthTarget() bool {
	return resource.IsDepthFormat(p.targetFormat)
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	}
	return nil
}

func (p *pipeline) SetRenderPipeline(rp any) {
	p.renderPipeline = rp
}
