package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoSurface is returned by surface operations on a headless device.
var ErrNoSurface = errors.New("renderer: device has no surface")

// renderer is the implementation of the Device and Renderer interfaces.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline
	samplerCache  map[common.SamplerStagingData]resource.Sampler
	shaderCache   shader.Cache

	backend  RendererBackend
	released bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
}

// Device is the GPU API the IBL nodes are written against.
//
// The Device owns a cache of pipelines keyed by program and target format, a cache of
// shared samplers and the shader cache used for its own utility passes. All node work
// for one tick is recorded onto one CommandEncoder obtained from BeginCommands.
type Device interface {
	// Backend returns the backend the device records onto.
	//
	// Returns:
	//   - RendererBackend: the backend
	Backend() RendererBackend

	// ShaderCache returns the shader cache the device compiles its utility programs with.
	// Nodes may share it.
	//
	// Returns:
	//   - shader.Cache: the cache
	ShaderCache() shader.Cache

	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - resource.Texture: the texture
	//   - error: an error if allocation fails
	CreateTexture(desc resource.TextureDescriptor) (resource.Texture, error)

	// CreateTextureWithData allocates a texture and uploads level 0 of each layer.
	//
	// Parameters:
	//   - desc: the texture description, which gains CopyDst usage
	//   - layers: tightly packed texels per layer; missing layers stay uninitialized
	//
	// Returns:
	//   - resource.Texture: the texture
	//   - error: an error if allocation or upload fails
	CreateTextureWithData(desc resource.TextureDescriptor, layers [][]byte) (resource.Texture, error)

	// WriteTexture uploads tightly packed texels into one layer and level.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - layer: the array layer
	//   - level: the mip level
	//   - data: the texels
	//
	// Returns:
	//   - error: an error if the upload fails
	WriteTexture(tex resource.Texture, layer, level uint32, data []byte) error

	// Sampler returns the shared sampler for data, creating it on first use. Shared
	// samplers are released with the device.
	//
	// Parameters:
	//   - data: the sampler configuration
	//
	// Returns:
	//   - resource.Sampler: the sampler
	//   - error: an error if creation fails
	Sampler(data common.SamplerStagingData) (resource.Sampler, error)

	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes
	//   - usage: the buffer usage flags
	//
	// Returns:
	//   - resource.Buffer: the buffer
	//   - error: an error if allocation fails
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (resource.Buffer, error)

	// WriteBuffer queues a write of data at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset
	//   - data: the bytes
	//
	// Returns:
	//   - error: an error if the write fails
	WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error

	// WriteBuffers writes all staged buffer writes. Writes whose provider has no buffer
	// at the binding are skipped.
	//
	// Parameters:
	//   - writes: the staged writes
	//
	// Returns:
	//   - error: the first write error
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines returns a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the backend objects for one or more pipelines and caches
	// them by PipelineKey. Pipelines whose keys are already registered are skipped to
	// avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// PipelineFor returns the pipeline drawing prog into targets of format, registering
	// it on first use.
	//
	// Parameters:
	//   - prog: the compiled program
	//   - format: the render target format
	//   - opts: extra options applied when the pipeline is first created
	//
	// Returns:
	//   - pipeline.Pipeline: the registered pipeline
	//   - error: an error if registration fails
	PipelineFor(prog *shader.Program, format wgpu.TextureFormat, opts ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error)

	// InitBindGroup creates any missing uniform and storage buffers described by
	// descriptor, sized by the entry's MinBindingSize, then creates the bind group and
	// stores it on the provider alongside the buffers.
	//
	// Parameters:
	//   - provider: the BindGroupProvider holding the caller's views and samplers
	//   - descriptor: the layout the bind group must match
	//
	// Returns:
	//   - error: an error if a resource is missing or creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) error

	// BeginCommands creates a command encoder.
	//
	// Parameters:
	//   - label: a debug label
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: an error if the device is released or encoder creation fails
	BeginCommands(label string) (CommandEncoder, error)

	// GenerateMipmaps records passes filling levels 1..N-1 of every layer of tex from
	// level 0. Returns shader.ErrNotReady, without recording anything, while the mipmap
	// program is still compiling.
	//
	// Parameters:
	//   - enc: the encoder to record onto
	//   - tex: a single-sampled texture with RenderAttachment and TextureBinding usage
	//
	// Returns:
	//   - error: shader.ErrNotReady, a compilation error or a recording error
	GenerateMipmaps(enc CommandEncoder, tex resource.Texture) error

	// Poll processes completed GPU work without blocking. Readback futures resolve here.
	Poll()

	// Release releases cached pipelines' samplers and the backend. Idempotent.
	Release()
}

// Renderer is a Device that also drives a presentation surface.
type Renderer interface {
	Device

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface cannot be configured
	Resize(width, height int) error

	// SetPresentMode changes the present mode on the next Resize.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the format of the surface. Pipelines drawing in the frame
	// pass must target it.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	SurfaceFormat() wgpu.TextureFormat

	// SampleCount returns the sample count of the frame pass.
	//
	// Returns:
	//   - MSAASampleCount: the frame pass sample count
	SampleCount() MSAASampleCount

	// BeginFrame acquires the next swapchain texture and begins the frame pass. Must be
	// paired with EndFrame.
	//
	// Returns:
	//   - RenderPass: the frame pass
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() (RenderPass, error)

	// EndFrame ends the frame pass and submits it. Call Present afterwards.
	//
	// Returns:
	//   - error: an error if submission fails
	EndFrame() error

	// Present presents the surface to the display and releases the swapchain texture.
	Present()
}

var _ Renderer = &renderer{}

// MipmapFlags returns the mipmap variant flags for textures described by desc.
//
// Parameters:
//   - desc: the texture whose chain is generated
//
// Returns:
//   - shader.Flags: a 2D-source variant, depth for depth formats
func MipmapFlags(desc resource.TextureDescriptor) shader.Flags {
	return shader.Flags{View: shader.View2D, Depth: desc.IsDepth()}
}

// NewDevice creates a Device recording onto backend.
//
// Parameters:
//   - backend: the backend to record onto
//   - options: a variadic list of RendererBuilderOption functions to configure the device
//
// Returns:
//   - Device: the device
func NewDevice(backend RendererBackend, options ...RendererBuilderOption) Device {
	return newRenderer(backend, options...)
}

// NewHeadlessDevice requests a GPU adapter without a surface.
//
// Parameters:
//   - options: a variadic list of RendererBuilderOption functions to configure the device
//
// Returns:
//   - Device: the device
//   - error: an error if no adapter or device is available
func NewHeadlessDevice(options ...RendererBuilderOption) (Device, error) {
	r := newRenderer(nil, options...)
	backend, err := newWGPURendererBackend(nil, r.forceFallbackAdapter, MSAAOff)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	return r, nil
}

// NewRenderer creates a Renderer presenting to window.
//
// Parameters:
//   - window: the window to present to
//   - options: a variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if no adapter or device is available or the surface cannot be configured
func NewRenderer(window window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := newRenderer(nil, options...)

	msaa := MSAAOff
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	backend, err := newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter, msaa)
	if err != nil {
		return nil, err
	}
	r.backend = backend

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.backend.ConfigureSurface(window.Width(), window.Height()); err != nil {
		r.backend.Release()
		return nil, err
	}
	return r, nil
}

func newRenderer(backend RendererBackend, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		samplerCache:  make(map[common.SamplerStagingData]resource.Sampler),
		backend:       backend,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.shaderCache == nil {
		r.shaderCache = shader.NewCache(shader.BackendWGSL)
	}
	if backend != nil && r.pendingPresentMode != nil {
		backend.SetPresentMode(*r.pendingPresentMode)
	}
	return r
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) ShaderCache() shader.Cache {
	return r.shaderCache
}

func (r *renderer) CreateTexture(desc resource.TextureDescriptor) (resource.Texture, error) {
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	tex, err := r.backend.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	return tex, nil
}

func (r *renderer) CreateTextureWithData(desc resource.TextureDescriptor, layers [][]byte) (resource.Texture, error) {
	desc.Usage |= wgpu.TextureUsageCopyDst
	tex, err := r.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	for layer, data := range layers {
		if data == nil {
			continue
		}
		if err := r.WriteTexture(tex, uint32(layer), 0, data); err != nil {
			tex.Release()
			return nil, err
		}
	}
	return tex, nil
}

func (r *renderer) WriteTexture(tex resource.Texture, layer, level uint32, data []byte) error {
	if err := r.backend.WriteTexture(tex, layer, level, data); err != nil {
		return fmt.Errorf("failed to write texture %q layer %d level %d: %w", tex.Label(), layer, level, err)
	}
	return nil
}

func (r *renderer) Sampler(data common.SamplerStagingData) (resource.Sampler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.samplerCache[data]; ok {
		return s, nil
	}
	s, err := r.backend.CreateSampler(fmt.Sprintf("Shared Sampler %d", len(r.samplerCache)), data)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	r.samplerCache[data] = s
	return s, nil
}

func (r *renderer) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (resource.Buffer, error) {
	buf, err := r.backend.CreateBuffer(label, size, usage)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	return buf, nil
}

func (r *renderer) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error {
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		if err := r.backend.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("failed to write %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return fmt.Errorf("failed to register pipeline %s: %w", key, err)
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) PipelineFor(prog *shader.Program, format wgpu.TextureFormat, opts ...pipeline.PipelineBuilderOption) (pipeline.Pipeline, error) {
	key := pipeline.Key(prog.Key(), format)
	if p := r.Pipeline(key); p != nil {
		return p, nil
	}
	opts = append([]pipeline.PipelineBuilderOption{pipeline.WithProgram(prog), pipeline.WithTargetFormat(format)}, opts...)
	if err := r.RegisterPipelines(pipeline.NewPipeline(key, opts...)); err != nil {
		return nil, err
	}
	return r.Pipeline(key), nil
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) error {
	if len(descriptor.Entries) == 0 {
		return nil
	}

	for _, entry := range descriptor.Entries {
		if entry.Buffer.Type == wgpu.BufferBindingTypeUndefined {
			continue
		}
		binding := int(entry.Binding)
		if provider.Buffer(binding) != nil {
			continue
		}

		var usage wgpu.BufferUsage
		switch entry.Buffer.Type {
		case wgpu.BufferBindingTypeUniform:
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
			usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		}
		buf, err := r.CreateBuffer(fmt.Sprintf("%s Buffer %d", provider.Label(), binding), entry.Buffer.MinBindingSize, usage)
		if err != nil {
			return err
		}
		provider.SetOwnedBuffer(binding, buf)
	}

	bg, err := r.backend.CreateBindGroup(provider, descriptor)
	if err != nil {
		return fmt.Errorf("failed to create bind group %s: %w", provider.Label(), err)
	}
	provider.SetBindGroup(bg)
	return nil
}

func (r *renderer) BeginCommands(label string) (CommandEncoder, error) {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()
	if released {
		return nil, errors.New("renderer: device released")
	}
	return r.backend.BeginCommands(label)
}

func (r *renderer) GenerateMipmaps(enc CommandEncoder, tex resource.Texture) error {
	desc := tex.Descriptor()
	if desc.MipLevels <= 1 {
		return nil
	}
	if desc.IsMultisampled() {
		return fmt.Errorf("cannot generate mipmaps for multisampled texture %q", desc.Label)
	}

	prog, err := r.shaderCache.Variant(shader.KindMipmap, MipmapFlags(desc)).Program()
	if err != nil {
		return err
	}
	p, err := r.PipelineFor(prog, desc.Format)
	if err != nil {
		return err
	}

	samplerData := common.LinearClampSampler
	if desc.IsDepth() {
		samplerData = common.NearestClampSampler
	}
	samp, err := r.Sampler(samplerData)
	if err != nil {
		return err
	}

	group, binding, ok := prog.SourceBinding()
	if !ok {
		return fmt.Errorf("mipmap program %s declares no source", prog.Key())
	}
	layout := prog.Fragment().BindGroupLayoutDescriptor(group)

	for level := uint32(1); level < desc.MipLevels; level++ {
		for layer := uint32(0); layer < desc.Layers; layer++ {
			label := fmt.Sprintf("%s Mip %d Layer %d", desc.Label, level, layer)
			provider := bind_group_provider.NewBindGroupProvider(label,
				bind_group_provider.WithGroup(group),
				bind_group_provider.WithTextureView(binding, resource.LayerView(tex, layer, level-1)),
				bind_group_provider.WithSampler(binding+1, samp),
			)
			if err := r.InitBindGroup(provider, layout); err != nil {
				return err
			}
			enc.Defer(provider.Release)

			pass, err := enc.BeginRenderPass(label, RenderTarget{Texture: tex, Layer: layer, Level: level})
			if err != nil {
				return err
			}
			if err := pass.SetPipeline(p); err != nil {
				return err
			}
			pass.SetBindGroup(provider)
			pass.Draw(3, 1, 0, 0)
			if err := pass.End(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *renderer) Poll() {
	r.backend.Poll()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	for _, s := range r.samplerCache {
		s.Release()
	}
	r.samplerCache = make(map[common.SamplerStagingData]resource.Sampler)
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	r.backend.Release()
}

func (r *renderer) Resize(width, height int) error {
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) SurfaceFormat() wgpu.TextureFormat {
	return r.backend.SurfaceFormat()
}

func (r *renderer) SampleCount() MSAASampleCount {
	return r.backend.SampleCount()
}

func (r *renderer) BeginFrame() (RenderPass, error) {
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}
