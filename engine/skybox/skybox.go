// Package skybox draws a cube array as the background of a frame.
package skybox

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Flags returns the variant flags the skybox program is compiled with.
func Flags() shader.Flags {
	return shader.Flags{View: shader.ViewCube}
}

// skybox is the implementation of the Skybox interface.
type skybox struct {
	mu *sync.Mutex

	dev         renderer.Device
	format      wgpu.TextureFormat
	sampleCount uint32
	variant     *shader.Variant

	texture  resource.Texture
	uniform  GPUSkyboxUniform
	provider bind_group_provider.BindGroupProvider
	bound    resource.Texture
}

// Skybox samples a cube texture along the view ray of every pixel and tone maps it.
type Skybox interface {
	// SetTexture selects the cube texture to draw. Nil draws nothing.
	//
	// Parameters:
	//   - tex: a cube or cube array texture
	SetTexture(tex resource.Texture)

	// Texture returns the texture being drawn.
	//
	// Returns:
	//   - resource.Texture: the texture or nil
	Texture() resource.Texture

	// SetLOD selects the mip level sampled. Clamped to the texture's levels on draw.
	//
	// Parameters:
	//   - lod: the level
	SetLOD(lod float32)

	// SetExposure sets the linear exposure applied before tone mapping.
	//
	// Parameters:
	//   - exposure: the exposure scale
	SetExposure(exposure float32)

	// SetInverseViewProjection sets the clip to world transform of the camera.
	//
	// Parameters:
	//   - m: the column-major inverse view-projection matrix
	SetInverseViewProjection(m [16]float32)

	// Uniform returns the uniform the next draw uploads.
	//
	// Returns:
	//   - GPUSkyboxUniform: the uniform
	Uniform() GPUSkyboxUniform

	// Draw records the skybox into pass. Nothing is recorded while the program compiles
	// or no texture is set.
	//
	// Parameters:
	//   - pass: the frame pass
	//
	// Returns:
	//   - bool: true if a draw was recorded
	//   - error: a compilation, pipeline or bind group error
	Draw(pass renderer.RenderPass) (bool, error)

	// Release releases the bind group and its uniform buffer.
	Release()
}

var _ Skybox = &skybox{}

// NewSkybox creates a skybox drawing into targets of format and requests its program.
//
// Parameters:
//   - dev: the device
//   - format: the color target format, usually Renderer.SurfaceFormat
//   - options: SkyboxBuilderOption values
//
// Returns:
//   - Skybox: the skybox
func NewSkybox(dev renderer.Device, format wgpu.TextureFormat, options ...SkyboxBuilderOption) Skybox {
	s := &skybox{
		mu:          &sync.Mutex{},
		dev:         dev,
		format:      format,
		sampleCount: 1,
		uniform:     GPUSkyboxUniform{Exposure: 1},
	}
	for _, opt := range options {
		opt(s)
	}
	common.Identity(s.uniform.InverseViewProjection[:])
	s.variant = dev.ShaderCache().Variant(shader.KindSkybox, Flags())
	return s
}

func (s *skybox) SetTexture(tex resource.Texture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texture = tex
}

func (s *skybox) Texture() resource.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}

func (s *skybox) SetLOD(lod float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniform.LOD = max(lod, 0)
}

func (s *skybox) SetExposure(exposure float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniform.Exposure = exposure
}

func (s *skybox) SetInverseViewProjection(m [16]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniform.InverseViewProjection = m
}

func (s *skybox) Uniform() GPUSkyboxUniform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clampedUniform()
}

func (s *skybox) clampedUniform() GPUSkyboxUniform {
	u := s.uniform
	if s.texture != nil {
		if top := float32(s.texture.Descriptor().MipLevels - 1); u.LOD > top {
			u.LOD = top
		}
	}
	return u
}

func (s *skybox) Draw(pass renderer.RenderPass) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.texture == nil || s.texture.Released() {
		return false, nil
	}
	prog, err := s.variant.Program()
	if errors.Is(err, shader.ErrNotReady) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p, err := s.dev.PipelineFor(prog, s.format, pipeline.WithSampleCount(s.sampleCount))
	if err != nil {
		return false, err
	}
	if err := s.bind(prog); err != nil {
		return false, err
	}
	_, uBinding, _ := prog.UniformBinding(shader.AnnotationArgSkyboxUniform)
	u := s.clampedUniform()
	if err := s.dev.WriteBuffers([]bind_group_provider.BufferWrite{bind_group_provider.UniformWrite(s.provider, uBinding, u.Marshal())}); err != nil {
		return false, err
	}

	if err := pass.SetPipeline(p); err != nil {
		return false, err
	}
	pass.SetBindGroup(s.provider)
	pass.Draw(3, 1, 0, 0)
	return true, nil
}

// bind recreates the bind group when the texture changed since the last draw.
func (s *skybox) bind(prog *shader.Program) error {
	if s.provider != nil && s.bound == s.texture {
		return nil
	}
	group, binding, ok := prog.SourceBinding()
	if !ok {
		return fmt.Errorf("skybox program %s declares no source", prog.Key())
	}
	if uGroup, _, ok := prog.UniformBinding(shader.AnnotationArgSkyboxUniform); !ok || uGroup != group {
		return fmt.Errorf("skybox program %s declares no uniform in group %d", prog.Key(), group)
	}
	samp, err := s.dev.Sampler(common.LinearClampSampler)
	if err != nil {
		return err
	}
	provider := bind_group_provider.NewBindGroupProvider("Skybox "+s.texture.Label(),
		bind_group_provider.WithGroup(group),
		bind_group_provider.WithTextureView(binding, resource.CubeView(s.texture)),
		bind_group_provider.WithSampler(binding+1, samp),
	)
	if err := s.dev.InitBindGroup(provider, prog.Fragment().BindGroupLayoutDescriptor(group)); err != nil {
		provider.Release()
		return err
	}
	s.release()
	s.provider = provider
	s.bound = s.texture
	return nil
}

func (s *skybox) release() {
	if s.provider != nil {
		s.provider.Release()
		s.provider = nil
		s.bound = nil
	}
}

func (s *skybox) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}
