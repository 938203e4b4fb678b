package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	configured    bool
	msaa          *wgpu.Texture
	msaaView      *wgpu.TextureView

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the surface pass

	// Frame state for the surface pass
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	released bool
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter and device. A nil surfaceDescriptor
// creates a headless backend.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) (*wgpuRendererBackendImpl, error) {
	if surfaceDescriptor != nil {
		runtime.LockOSThread()
	}
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
	}
	if surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "IBL Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		a.Release()
		w.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc resource.TextureDescriptor) (resource.Texture, error) {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		MipLevelCount: desc.MipLevels,
		SampleCount:   desc.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{
		desc:    desc,
		texture: tex,
		views:   make(map[resource.ViewDescriptor]*wgpu.TextureView),
	}, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex resource.Texture, layer, level uint32, data []byte) error {
	t, err := asWGPUTexture(tex)
	if err != nil {
		return err
	}
	texel, ok := resource.BytesPerTexel(t.desc.Format)
	if !ok {
		return fmt.Errorf("unsupported upload format %v", t.desc.Format)
	}
	w, h := t.desc.MipSize(level)
	if uint64(len(data)) != uint64(w)*uint64(h)*uint64(texel) {
		return fmt.Errorf("got %d bytes, want %d for %dx%d", len(data), w*h*texel, w, h)
	}

	return b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: level,
			Origin:   wgpu.Origin3D{Z: layer},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  w * texel,
			RowsPerImage: h,
		},
		&wgpu.Extent3D{
			Width:              w,
			Height:             h,
			DepthOrArrayLayers: 1,
		},
	)
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, samplerStagingData common.SamplerStagingData) (resource.Sampler, error) {
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(samplerStagingData.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(samplerStagingData.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(samplerStagingData.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     samplerStagingData.MagFilter,
		MinFilter:     samplerStagingData.MinFilter,
		MipmapFilter:  samplerStagingData.MipmapFilter,
		LodMinClamp:   samplerStagingData.LodMinClamp,
		LodMaxClamp:   common.Coalesce(samplerStagingData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerStagingData.MaxAnisotropy, 1),
		Compare:       samplerStagingData.Compare,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: samp}, nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (resource.Buffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: label, size: size, buffer: buf}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("buffer %q was not created by the wgpu backend", buf.Label())
	}
	if offset+uint64(len(data)) > wb.size {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q of %d bytes", len(data), offset, wb.label, wb.size)
	}
	return b.queue.WriteBuffer(wb.buffer, offset, data)
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	vs, fs := p.Shader(shader.ShaderTypeVertex), p.Shader(shader.ShaderTypeFragment)
	if vs == nil || fs == nil {
		return fmt.Errorf("pipeline %q needs both a vertex and a fragment shader", p.PipelineKey())
	}

	// Both stages are entry points of one generated WGSL module.
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          p.PipelineKey(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fs.WGSL()},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	layouts, err := b.createBindGroupLayouts(mergeBindGroupLayouts(vs.BindGroupLayoutDescriptors(), fs.BindGroupLayoutDescriptors()))
	defer func() {
		for _, l := range layouts {
			if l != nil {
				l.Release()
			}
		}
	}()
	if err != nil {
		return err
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: vs.EntryPoint()},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fs.EntryPoint(),
		},
		// Every pass draws a full-screen triangle generated from vertex_index.
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: p.SampleCount(), Mask: ^uint32(0)},
	}
	if p.DepthTarget() {
		// frag_depth is the payload, so every fragment is written unconditionally.
		always := wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            p.TargetFormat(),
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionAlways,
			StencilFront:      always,
			StencilBack:       always,
		}
	} else {
		desc.Fragment.Targets = []wgpu.ColorTargetState{{Format: p.TargetFormat(), WriteMask: wgpu.ColorWriteMaskAll}}
	}

	created, err := b.device.CreateRenderPipeline(desc)
	if err != nil {
		return err
	}
	p.SetRenderPipeline(created)
	return nil
}

// createBindGroupLayouts creates one layout per group index up to the highest
// declared group. Gaps get an empty layout. On error the returned slice holds the
// layouts created so far for the caller to release.
func (b *wgpuRendererBackendImpl) createBindGroupLayouts(groups map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, error) {
	count := 0
	for g := range groups {
		count = max(count, g+1)
	}
	layouts := make([]*wgpu.BindGroupLayout, count)
	for g := range layouts {
		desc := groups[g]
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return layouts, fmt.Errorf("bind group layout %d: %w", g, err)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) (resource.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		e, err := bindGroupEntry(provider, entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", provider.Label(), err)
		}
		entries[i] = e
	}

	layout, err := b.device.CreateBindGroupLayout(&descriptor)
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{group: bindGroup}, nil
}

// bindGroupEntry resolves the resource the provider holds for one layout entry.
func bindGroupEntry(provider bind_group_provider.BindGroupProvider, entry wgpu.BindGroupLayoutEntry) (wgpu.BindGroupEntry, error) {
	binding := int(entry.Binding)
	out := wgpu.BindGroupEntry{Binding: entry.Binding}
	switch {
	case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		tv, ok := provider.TextureView(binding)
		if !ok {
			return out, fmt.Errorf("texture binding %d has no texture view", binding)
		}
		t, err := asWGPUTexture(tv.Texture)
		if err != nil {
			return out, err
		}
		if out.TextureView, err = t.view(tv.ViewDescriptor); err != nil {
			return out, err
		}
	case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		samp, ok := provider.Sampler(binding).(*wgpuSampler)
		if !ok {
			return out, fmt.Errorf("sampler binding %d has no wgpu sampler", binding)
		}
		out.Sampler = samp.sampler
	default:
		buf, ok := provider.Buffer(binding).(*wgpuBuffer)
		if !ok {
			return out, fmt.Errorf("buffer binding %d has no wgpu buffer", binding)
		}
		out.Buffer, out.Size = buf.buffer, wgpu.WholeSize
	}
	return out, nil
}

func (b *wgpuRendererBackendImpl) BeginCommands(label string) (CommandEncoder, error) {
	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{backend: b, label: label, encoder: encoder}, nil
}

func (b *wgpuRendererBackendImpl) Poll() {
	b.device.Poll(false, nil)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	b.releaseSurfaceTargets()
	if b.surface != nil {
		b.surface.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return ErrNoSurface
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("surface reports no formats")
	}
	b.surfaceFormat = capabilities.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseSurfaceTargets()
	b.configured = true
	if b.sampleCount <= 1 {
		return nil
	}
	return b.createMSAATarget(uint32(width), uint32(height))
}

// createMSAATarget allocates the multisampled color target the frame pass draws
// into and resolves to the swapchain image.
func (b *wgpuRendererBackendImpl) createMSAATarget(width, height uint32) error {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Frame MSAA Target",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   uint32(b.sampleCount),
		Dimension:     wgpu.TextureDimension2D,
		Format:        b.surfaceFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return err
	}
	b.msaa, b.msaaView = tex, view
	return nil
}

func (b *wgpuRendererBackendImpl) releaseSurfaceTargets() {
	if b.msaaView != nil {
		b.msaaView.Release()
		b.msaaView = nil
	}
	if b.msaa != nil {
		b.msaa.Release()
		b.msaa = nil
	}
}

// frameAttachment draws into the swapchain view directly, or into the MSAA target
// resolving to it. Multisampled contents are discarded after the resolve.
func (b *wgpuRendererBackendImpl) frameAttachment(swapchain *wgpu.TextureView) wgpu.RenderPassColorAttachment {
	attachment := wgpu.RenderPassColorAttachment{
		View:       swapchain,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1},
	}
	if b.msaaView != nil {
		attachment.View = b.msaaView
		attachment.ResolveTarget = swapchain
		attachment.StoreOp = wgpu.StoreOpDiscard
	}
	return attachment
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = wgpu.PresentModeImmediate
	if mode == PresentModeVSync {
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) SampleCount() MSAASampleCount {
	return b.sampleCount
}

func (b *wgpuRendererBackendImpl) BeginFrame() (RenderPass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || !b.configured {
		return nil, ErrNoSurface
	}
	if b.frameSurface != nil {
		return nil, errors.New("previous frame not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Frame"})
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	b.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            "Frame",
		ColorAttachments: []wgpu.RenderPassColorAttachment{b.frameAttachment(view)},
	})
	return &wgpuRenderPass{pass: b.framePass, frame: true}, nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return nil
	}
	encoder, pass := b.frameEncoder, b.framePass
	b.frameEncoder, b.framePass = nil, nil
	defer encoder.Release()

	pass.End()
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		b.releaseFrameSurface()
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameSurface()
}

func (b *wgpuRendererBackendImpl) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

// mergeBindGroupLayouts combines the layouts two stages declare. An entry declared
// by both stages keeps the vertex entry with the visibility of both.
func mergeBindGroupLayouts(vertex, fragment map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	byGroup := make(map[int]map[uint32]wgpu.BindGroupLayoutEntry)
	labels := make(map[int]string)
	for _, stage := range []map[int]wgpu.BindGroupLayoutDescriptor{vertex, fragment} {
		for g, desc := range stage {
			if byGroup[g] == nil {
				byGroup[g] = make(map[uint32]wgpu.BindGroupLayoutEntry)
				labels[g] = desc.Label
			}
			for _, e := range desc.Entries {
				if existing, ok := byGroup[g][e.Binding]; ok {
					existing.Visibility |= e.Visibility
					e = existing
				}
				byGroup[g][e.Binding] = e
			}
		}
	}

	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(byGroup))
	for g, entries := range byGroup {
		flat := make([]wgpu.BindGroupLayoutEntry, 0, len(entries))
		for _, e := range entries {
			flat = append(flat, e)
		}
		sort.Slice(flat, func(i, j int) bool { return flat[i].Binding < flat[j].Binding })
		merged[g] = wgpu.BindGroupLayoutDescriptor{Label: labels[g], Entries: flat}
	}
	return merged
}
