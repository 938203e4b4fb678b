package renderer

import (
	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA)
// of the surface pass. Offscreen passes always render single-sampled.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1). This is the default.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// RenderTarget selects the subresource a render pass draws into.
type RenderTarget struct {
	Texture resource.Texture
	Layer   uint32
	Level   uint32

	// Clear is the clear color. Nil loads the existing contents.
	Clear *wgpu.Color
}

// CommandEncoder records passes and copies for one submission.
type CommandEncoder interface {
	// BeginRenderPass starts a pass drawing into target. Depth targets are bound as the
	// depth attachment and the pass has no color attachment.
	//
	// Parameters:
	//   - label: a debug label
	//   - target: the subresource to draw into
	//
	// Returns:
	//   - RenderPass: the pass, which must be ended before the next one begins
	//   - error: an error if the target cannot be bound
	BeginRenderPass(label string, target RenderTarget) (RenderPass, error)

	// ReadTexture records a copy of one layer and level into a staging buffer. The
	// future resolves with tightly packed rows once the copy has been submitted and
	// mapped, which requires later calls to Device.Poll.
	//
	// Parameters:
	//   - tex: the texture to read
	//   - layer: the array layer
	//   - level: the mip level
	//
	// Returns:
	//   - *common.Future[[]byte]: the pending texel data
	ReadTexture(tex resource.Texture, layer, level uint32) *common.Future[[]byte]

	// Defer runs fn after the commands have been submitted or discarded. Used to release
	// transient bind groups referenced by recorded passes.
	//
	// Parameters:
	//   - fn: the function to run
	Defer(fn func())

	// OnSubmit runs fn after the commands have been submitted, in registration order.
	// Nodes commit progress here so that discarded work is recorded again. Never runs
	// for a discarded encoder or a failed submission.
	//
	// Parameters:
	//   - fn: the function to run, its error is returned by Finish
	OnSubmit(fn func() error)

	// Finish submits the recorded commands and runs the OnSubmit functions. The
	// encoder cannot be used afterwards.
	//
	// Returns:
	//   - error: an error if the commands could not be finished, or the joined
	//     errors of the OnSubmit functions
	Finish() error

	// Discard drops the recorded commands without submitting them.
	Discard()
}

// RenderPass records draws into one target.
type RenderPass interface {
	// SetPipeline binds a registered pipeline.
	//
	// Parameters:
	//   - p: the pipeline, which must have been registered with the device
	//
	// Returns:
	//   - error: an error if the pipeline has no backend object
	SetPipeline(p pipeline.Pipeline) error

	// SetBindGroup binds the provider's bind group at the provider's group index.
	//
	// Parameters:
	//   - provider: an initialized bind group provider
	SetBindGroup(provider bind_group_provider.BindGroupProvider)

	// Draw records a non-indexed draw.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// End closes the pass.
	//
	// Returns:
	//   - error: an error reported by the backend
	End() error
}

// RendererBackend is the per-API implementation a device is built on. Backends
// create and own GPU objects and record commands but keep no caches of pipelines
// or shaders; those live in the device.
type RendererBackend interface {
	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - resource.Texture: the texture handle
	//   - error: an error if allocation fails
	CreateTexture(desc resource.TextureDescriptor) (resource.Texture, error)

	// WriteTexture uploads tightly packed texel data into one layer and level.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - layer: the array layer
	//   - level: the mip level
	//   - data: the texel bytes
	//
	// Returns:
	//   - error: an error if the upload does not match the subresource
	WriteTexture(tex resource.Texture, layer, level uint32, data []byte) error

	// CreateSampler creates a sampler. Zero fields of data take the linear repeat defaults.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - resource.Sampler: the sampler
	//   - error: an error if creation fails
	CreateSampler(label string, data common.SamplerStagingData) (resource.Sampler, error)

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
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the write would overflow the buffer
	WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error

	// RegisterRenderPipeline creates the backend pipeline object and stores it on p.
	//
	// Parameters:
	//   - p: the pipeline description
	//
	// Returns:
	//   - error: an error if the pipeline could not be created
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// CreateBindGroup creates a bind group from the provider's resources. Every entry in
	// descriptor must have a matching resource on the provider.
	//
	// Parameters:
	//   - provider: the resources to bind
	//   - descriptor: the layout the bind group must match
	//
	// Returns:
	//   - resource.BindGroup: the bind group
	//   - error: an error if a resource is missing or creation fails
	CreateBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) (resource.BindGroup, error)

	// BeginCommands creates a command encoder.
	//
	// Parameters:
	//   - label: a debug label
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: an error if the encoder could not be created
	BeginCommands(label string) (CommandEncoder, error)

	// Poll processes completed GPU work and fires readback callbacks without blocking.
	Poll()

	// Release frees the device. Resources created from it must not be used afterwards.
	Release()

	// ConfigureSurface (re)configures the presentation surface. Headless backends
	// return ErrNoSurface.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: an error if the surface cannot be configured
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the present mode applied by the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the format of the configured surface.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format, undefined when headless
	SurfaceFormat() wgpu.TextureFormat

	// SampleCount returns the sample count of the surface pass.
	//
	// Returns:
	//   - MSAASampleCount: the surface sample count
	SampleCount() MSAASampleCount

	// BeginFrame acquires the next swapchain texture and begins the surface pass.
	// Must be paired with EndFrame.
	//
	// Returns:
	//   - RenderPass: the surface pass
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() (RenderPass, error)

	// EndFrame ends the surface pass and submits it. Does not present.
	//
	// Returns:
	//   - error: an error if submission fails
	EndFrame() error

	// Present presents the surface and releases the swapchain texture.
	Present()
}
