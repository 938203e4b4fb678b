package pipeline

import (
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption configures a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithProgram takes both stages from a generated program.
//
// Parameters:
//   - prog: the program to draw with
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithProgram(prog *shader.Program) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = prog.Vertex()
		p.fragmentShader = prog.Fragment()
	}
}

// WithTargetFormat sets the format of the attachment the pipeline writes.
func WithTargetFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.targetFormat = format
	}
}

// WithSampleCount matches the pipeline to a multisampled surface. Zero means one sample.
func WithSampleCount(count uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.sampleCount = max(count, 1)
	}
}
