package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// group is the @group index this provider binds to.
	group int

	// bindGroup is the GPU bind group created for this provider, or nil until the
	// renderer initializes it.
	bindGroup resource.BindGroup

	// buffers holds the buffers bound by this provider, keyed by binding index.
	buffers map[int]resource.Buffer
	// ownedBuffers marks buffers the renderer created for this provider. Only these
	// are released with the provider.
	ownedBuffers map[int]bool
	// textureViews holds the texture views bound by this provider, keyed by binding index.
	textureViews map[int]resource.TextureView
	// samplers holds the samplers bound by this provider, keyed by binding index.
	samplers map[int]resource.Sampler
}

// BindGroupProvider collects the resources one bind group needs. A node fills in the
// texture views and samplers it owns, then the renderer creates any missing uniform
// buffers and the bind group itself.
//
// Usage pattern:
//  1. Node creates a BindGroupProvider with its source view and sampler
//  2. Node calls Renderer.InitBindGroup(provider, descriptor) to create GPU resources
//  3. Node writes uniforms through Renderer.WriteBuffer(provider.Buffer(binding), ...)
//  4. Node binds the provider on a render pass
type BindGroupProvider interface {
	// Release releases the bind group and the buffers the renderer created for this
	// provider. Texture views and samplers belong to the caller and are left alone.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Group returns the @group index the provider binds to.
	//
	// Returns:
	//   - int: the group index
	Group() int

	// BindGroup returns the created bind group, or nil if GPU resources have not been
	// initialized.
	//
	// Returns:
	//   - resource.BindGroup: the bind group or nil
	BindGroup() resource.BindGroup

	// Buffer returns the buffer at binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - resource.Buffer: the buffer or nil
	Buffer(binding int) resource.Buffer

	// Buffers returns all buffers keyed by binding index.
	//
	// Returns:
	//   - map[int]resource.Buffer: the buffers
	Buffers() map[int]resource.Buffer

	// TextureView returns the texture view at binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - resource.TextureView: the view
	//   - bool: false if no view is set
	TextureView(binding int) (resource.TextureView, bool)

	// TextureViews returns all texture views keyed by binding index.
	//
	// Returns:
	//   - map[int]resource.TextureView: the views
	TextureViews() map[int]resource.TextureView

	// Sampler returns the sampler at binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - resource.Sampler: the sampler or nil
	Sampler(binding int) resource.Sampler

	// Samplers returns all samplers keyed by binding index.
	//
	// Returns:
	//   - map[int]resource.Sampler: the samplers
	Samplers() map[int]resource.Sampler

	// SetBindGroup sets the bind group after GPU initialization, releasing any previous one.
	// Called by Renderer.InitBindGroup().
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg resource.BindGroup)

	// SetBuffer binds a caller-owned buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	SetBuffer(binding int, buf resource.Buffer)

	// SetOwnedBuffer binds a buffer the provider releases with itself.
	// Called by Renderer.InitBindGroup() for buffers it creates.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	SetOwnedBuffer(binding int, buf resource.Buffer)

	// SetTextureView stores a texture view for a specific binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - view: the texture view to store
	SetTextureView(binding int, view resource.TextureView)

	// SetSampler stores a sampler for a specific binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler to store
	SetSampler(binding int, s resource.Sampler)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider for group 0 with the given label
// and applies all provided options.
//
// Parameters:
//   - label: a debug label for this provider
//   - options: functional options to configure the provider
//
// Returns:
//   - BindGroupProvider: the newly created provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]resource.Buffer),
		ownedBuffers: make(map[int]bool),
		textureViews: make(map[int]resource.TextureView),
		samplers:     make(map[int]resource.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Release() {
	for i, buf := range p.buffers {
		if buf != nil && p.ownedBuffers[i] {
			buf.Release()
		}
		delete(p.buffers, i)
		delete(p.ownedBuffers, i)
	}
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Group() int {
	return p.group
}

func (p *bindGroupProvider) BindGroup() resource.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Buffer(binding int) resource.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]resource.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) TextureView(binding int) (resource.TextureView, bool) {
	v, ok := p.textureViews[binding]
	return v, ok
}

func (p *bindGroupProvider) TextureViews() map[int]resource.TextureView {
	return p.textureViews
}

func (p *bindGroupProvider) Sampler(binding int) resource.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) Samplers() map[int]resource.Sampler {
	return p.samplers
}

func (p *bindGroupProvider) SetBindGroup(bg resource.BindGroup) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBuffer(binding int, buf resource.Buffer) {
	p.buffers[binding] = buf
	delete(p.ownedBuffers, binding)
}

func (p *bindGroupProvider) SetOwnedBuffer(binding int, buf resource.Buffer) {
	p.buffers[binding] = buf
	p.ownedBuffers[binding] = true
}

func (p *bindGroupProvider) SetTextureView(binding int, view resource.TextureView) {
	p.textureViews[binding] = view
}

func (p *bindGroupProvider) SetSampler(binding int, s resource.Sampler) {
	p.samplers[binding] = s
}
