// Package renderertest provides an in-memory renderer backend. It records every
// encoder, pass and upload and scripts readback results so node logic can be
// tested without a GPU.
package renderertest

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Texture is the in-memory texture. Uploaded subresources are kept by (layer, level).
type Texture struct {
	mu       sync.Mutex
	desc     resource.TextureDescriptor
	released bool
	data     map[[2]uint32][]byte
}

var _ resource.Texture = &Texture{}

func (t *Texture) Label() string                         { return t.desc.Label }
func (t *Texture) Descriptor() resource.TextureDescriptor { return t.desc }

func (t *Texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = true
}

func (t *Texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// Data returns the bytes last uploaded to layer and level, or nil.
func (t *Texture) Data(layer, level uint32) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data[[2]uint32{layer, level}]
}

// Buffer is the in-memory buffer. Writes land in Bytes.
type Buffer struct {
	mu       sync.Mutex
	label    string
	bytes    []byte
	usage    wgpu.BufferUsage
	released bool
}

var _ resource.Buffer = &Buffer{}

func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Size() uint64  { return uint64(len(b.bytes)) }

func (b *Buffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

// Released reports whether the buffer has been released.
func (b *Buffer) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.bytes...)
}

type sampler struct{ data common.SamplerStagingData }

func (*sampler) Release() {}

type bindGroup struct {
	label    string
	released bool
}

func (g *bindGroup) Release() { g.released = true }

// Draw is one recorded draw call.
type Draw struct {
	VertexCount, InstanceCount, FirstVertex, FirstInstance uint32
}

// Pass is one recorded render pass.
type Pass struct {
	Label    string
	Target   renderer.RenderTarget
	Pipeline string

	// Views are the texture views bound at each group and binding when the first draw was recorded.
	Views map[int]map[int]resource.TextureView
	Draws []Draw
}

// Readback is one recorded texture readback.
type Readback struct {
	Texture resource.Texture
	Layer   uint32
	Level   uint32
}

// ReadbackFunc produces the bytes a readback resolves with.
type ReadbackFunc func(tex resource.Texture, layer, level uint32) ([]byte, error)

type pendingReadback struct {
	Readback
	future *common.Future[[]byte]
	wait   int
}

// Backend is the recording renderer.RendererBackend.
type Backend struct {
	mu sync.Mutex

	textures  []*Texture
	buffers   []*Buffer
	passes    []Pass
	readbacks []Readback
	pending   []pendingReadback
	pipelines []string

	submissions int
	discards    int
	polls       int
	released    bool

	surfaceFormat wgpu.TextureFormat
	frame         *pass

	// ReadbackFunc scripts readback results. Nil resolves with the bytes uploaded
	// to the subresource, or zeroes.
	ReadbackFunc ReadbackFunc

	// CreateTextureErr fails every CreateTexture call while set.
	CreateTextureErr error

	// FinishErr fails every encoder submission while set. The encoder's passes and
	// readbacks are dropped as if it had been discarded.
	FinishErr error

	// PollsPerReadback is how many Poll calls a submitted readback waits before it
	// resolves. Zero resolves on the first Poll.
	PollsPerReadback int
}

var _ renderer.RendererBackend = &Backend{}

// NewBackend returns an empty headless recording backend.
func NewBackend() *Backend {
	return &Backend{}
}

// NewDevice returns a device recording onto a new backend.
//
// Parameters:
//   - options: builder options applied to the device
//
// Returns:
//   - renderer.Device: the device
//   - *Backend: the backend, for inspecting what was recorded
func NewDevice(options ...renderer.RendererBuilderOption) (renderer.Device, *Backend) {
	b := NewBackend()
	return renderer.NewDevice(b, options...), b
}

// NewRenderer returns a device with a fake surface of format BGRA8UnormSrgb. Resize
// configures it and BeginFrame records a pass with a nil target texture.
func NewRenderer(options ...renderer.RendererBuilderOption) (renderer.Renderer, *Backend) {
	b := NewBackend()
	b.surfaceFormat = wgpu.TextureFormatBGRA8UnormSrgb
	return renderer.NewDevice(b, options...).(renderer.Renderer), b
}

// Passes returns a copy of every pass recorded so far.
func (b *Backend) Passes() []Pass {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Pass(nil), b.passes...)
}

// PassCount returns the number of passes recorded so far.
func (b *Backend) PassCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.passes)
}

// Readbacks returns every readback recorded so far.
func (b *Backend) Readbacks() []Readback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Readback(nil), b.readbacks...)
}

// Submissions returns the number of finished encoders.
func (b *Backend) Submissions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submissions
}

// Discards returns the number of discarded encoders.
func (b *Backend) Discards() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discards
}

// Pipelines returns the keys of every registered pipeline in registration order.
func (b *Backend) Pipelines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.pipelines...)
}

// Textures returns every texture created so far.
func (b *Backend) Textures() []*Texture {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Texture(nil), b.textures...)
}

// LiveTextures returns the number of textures not yet released.
func (b *Backend) LiveTextures() int {
	n := 0
	for _, t := range b.Textures() {
		if !t.Released() {
			n++
		}
	}
	return n
}

// Buffers returns every buffer created so far.
func (b *Backend) Buffers() []*Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Buffer(nil), b.buffers...)
}

// Released reports whether the backend has been released.
func (b *Backend) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func (b *Backend) CreateTexture(desc resource.TextureDescriptor) (resource.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CreateTextureErr != nil {
		return nil, b.CreateTextureErr
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q has zero size", desc.Label)
	}
	t := &Texture{desc: desc, data: make(map[[2]uint32][]byte)}
	b.textures = append(b.textures, t)
	return t, nil
}

func (b *Backend) WriteTexture(tex resource.Texture, layer, level uint32, data []byte) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("texture %q was not created by the test backend", tex.Label())
	}
	texel, ok := resource.BytesPerTexel(t.desc.Format)
	if !ok {
		return fmt.Errorf("unsupported upload format %v", t.desc.Format)
	}
	w, h := t.desc.MipSize(level)
	if uint64(len(data)) != uint64(w)*uint64(h)*uint64(texel) {
		return fmt.Errorf("got %d bytes, want %d", len(data), w*h*texel)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[[2]uint32{layer, level}] = append([]byte(nil), data...)
	return nil
}

func (b *Backend) CreateSampler(_ string, data common.SamplerStagingData) (resource.Sampler, error) {
	return &sampler{data: data}, nil
}

func (b *Backend) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (resource.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size", label)
	}
	buf := &Buffer{label: label, bytes: make([]byte, size), usage: usage}
	b.buffers = append(b.buffers, buf)
	return buf, nil
}

func (b *Backend) WriteBuffer(buf resource.Buffer, offset uint64, data []byte) error {
	fb, ok := buf.(*Buffer)
	if !ok {
		return fmt.Errorf("buffer %q was not created by the test backend", buf.Label())
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if offset+uint64(len(data)) > uint64(len(fb.bytes)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q", len(data), offset, fb.label)
	}
	copy(fb.bytes[offset:], data)
	return nil
}

func (b *Backend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if p.Shader(shader.ShaderTypeVertex) == nil || p.Shader(shader.ShaderTypeFragment) == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines = append(b.pipelines, p.PipelineKey())
	p.SetRenderPipeline(p.PipelineKey())
	return nil
}

func (b *Backend) CreateBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor) (resource.BindGroup, error) {
	for _, entry := range descriptor.Entries {
		binding := int(entry.Binding)
		switch {
		case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			tv, ok := provider.TextureView(binding)
			if !ok {
				return nil, fmt.Errorf("texture binding %d has no texture view", binding)
			}
			if tv.Texture.Released() {
				return nil, fmt.Errorf("texture binding %d views released texture %q", binding, tv.Texture.Label())
			}
		case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			if provider.Sampler(binding) == nil {
				return nil, fmt.Errorf("sampler binding %d has no sampler", binding)
			}
		default:
			buf := provider.Buffer(binding)
			if buf == nil {
				return nil, fmt.Errorf("buffer binding %d has no buffer", binding)
			}
			if buf.Size() < entry.Buffer.MinBindingSize {
				return nil, fmt.Errorf("buffer binding %d is %d bytes, layout needs %d", binding, buf.Size(), entry.Buffer.MinBindingSize)
			}
		}
	}
	return &bindGroup{label: provider.Label()}, nil
}

func (b *Backend) BeginCommands(label string) (renderer.CommandEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, errors.New("backend released")
	}
	return &encoder{backend: b, label: label}, nil
}

func (b *Backend) Poll() {
	b.mu.Lock()
	b.polls++
	var ready []pendingReadback
	keep := b.pending[:0]
	for _, p := range b.pending {
		if p.wait > 0 {
			p.wait--
			keep = append(keep, p)
			continue
		}
		ready = append(ready, p)
	}
	b.pending = keep
	fn := b.ReadbackFunc
	b.mu.Unlock()

	for _, p := range ready {
		var data []byte
		var err error
		if fn != nil {
			data, err = fn(p.Texture, p.Layer, p.Level)
		} else {
			data = defaultReadback(p.Texture, p.Layer, p.Level)
		}
		if err != nil {
			p.future.Reject(err)
			continue
		}
		p.future.Resolve(data)
	}
}

// Polls returns the number of Poll calls.
func (b *Backend) Polls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}

func defaultReadback(tex resource.Texture, layer, level uint32) []byte {
	if t, ok := tex.(*Texture); ok {
		if d := t.Data(layer, level); d != nil {
			return d
		}
	}
	desc := tex.Descriptor()
	texel, _ := resource.BytesPerTexel(desc.Format)
	w, h := desc.MipSize(level)
	return make([]byte, w*h*texel)
}

func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}

func (b *Backend) ConfigureSurface(width, height int) error {
	if b.surfaceFormat == wgpu.TextureFormatUndefined {
		return renderer.ErrNoSurface
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	return nil
}

func (b *Backend) SetPresentMode(renderer.PresentMode) {}

func (b *Backend) SurfaceFormat() wgpu.TextureFormat {
	return b.surfaceFormat
}

func (b *Backend) SampleCount() renderer.MSAASampleCount {
	return renderer.MSAAOff
}

func (b *Backend) BeginFrame() (renderer.RenderPass, error) {
	if b.surfaceFormat == wgpu.TextureFormatUndefined {
		return nil, renderer.ErrNoSurface
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame != nil {
		return nil, errors.New("previous frame not ended")
	}
	b.frame = &pass{backend: b, record: Pass{Label: "frame"}}
	return b.frame, nil
}

func (b *Backend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil
	}
	b.passes = append(b.passes, b.frame.record)
	b.frame = nil
	b.submissions++
	return nil
}

func (b *Backend) Present() {}

type encoder struct {
	backend   *Backend
	label     string
	passes    []Pass
	readbacks []pendingReadback
	deferred  []func()
	submitted []func() error
	open      *pass
	done      bool
}

func (e *encoder) BeginRenderPass(label string, target renderer.RenderTarget) (renderer.RenderPass, error) {
	if e.done {
		return nil, errors.New("command encoder already finished")
	}
	if e.open != nil {
		return nil, errors.New("previous render pass not ended")
	}
	desc := target.Texture.Descriptor()
	if target.Layer >= desc.Layers || target.Level >= desc.MipLevels {
		return nil, fmt.Errorf("target layer %d level %d out of range for %q", target.Layer, target.Level, desc.Label)
	}
	if target.Texture.Released() {
		return nil, fmt.Errorf("target %q is released", desc.Label)
	}
	e.open = &pass{encoder: e, record: Pass{Label: label, Target: target}}
	return e.open, nil
}

func (e *encoder) ReadTexture(tex resource.Texture, layer, level uint32) *common.Future[[]byte] {
	if e.done {
		return common.Rejected[[]byte](errors.New("command encoder already finished"))
	}
	desc := tex.Descriptor()
	if layer >= desc.Layers || level >= desc.MipLevels {
		return common.Rejected[[]byte](fmt.Errorf("readback of layer %d level %d out of range for %q", layer, level, desc.Label))
	}
	f := common.NewFuture[[]byte]()
	e.readbacks = append(e.readbacks, pendingReadback{
		Readback: Readback{Texture: tex, Layer: layer, Level: level},
		future:   f,
	})
	return f
}

func (e *encoder) Defer(fn func()) {
	e.deferred = append(e.deferred, fn)
}

func (e *encoder) OnSubmit(fn func() error) {
	e.submitted = append(e.submitted, fn)
}

func (e *encoder) Finish() error {
	if e.done {
		return errors.New("command encoder already finished")
	}
	e.done = true
	defer e.runDeferred()
	if e.open != nil {
		e.reject(errors.New("render pass not ended"))
		return errors.New("render pass not ended before finish")
	}
	b := e.backend
	b.mu.Lock()
	if err := b.FinishErr; err != nil {
		b.discards++
		b.mu.Unlock()
		e.reject(err)
		return err
	}
	b.passes = append(b.passes, e.passes...)
	b.submissions++
	for _, rb := range e.readbacks {
		rb.wait = b.PollsPerReadback
		b.readbacks = append(b.readbacks, rb.Readback)
		b.pending = append(b.pending, rb)
	}
	b.mu.Unlock()

	var errs []error
	for _, fn := range e.submitted {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *encoder) reject(err error) {
	for _, rb := range e.readbacks {
		rb.future.Reject(err)
	}
	e.readbacks = nil
	e.submitted = nil
}

func (e *encoder) Discard() {
	if e.done {
		return
	}
	e.done = true
	e.reject(errors.New("command encoder discarded"))
	e.backend.mu.Lock()
	e.backend.discards++
	e.backend.mu.Unlock()
	e.runDeferred()
}

func (e *encoder) runDeferred() {
	for _, fn := range e.deferred {
		fn()
	}
	e.deferred = nil
}

type pass struct {
	encoder *encoder
	backend *Backend
	record  Pass
	groups  map[int]bind_group_provider.BindGroupProvider
	ended   bool
}

func (p *pass) SetPipeline(pl pipeline.Pipeline) error {
	if pl.Pipeline() == nil {
		return fmt.Errorf("pipeline %s is not registered", pl.PipelineKey())
	}
	p.record.Pipeline = pl.PipelineKey()
	return nil
}

func (p *pass) SetBindGroup(provider bind_group_provider.BindGroupProvider) {
	if p.groups == nil {
		p.groups = make(map[int]bind_group_provider.BindGroupProvider)
	}
	p.groups[provider.Group()] = provider
}

func (p *pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.record.Views == nil {
		p.record.Views = make(map[int]map[int]resource.TextureView)
		for g, provider := range p.groups {
			p.record.Views[g] = maps.Clone(provider.TextureViews())
		}
	}
	p.record.Draws = append(p.record.Draws, Draw{vertexCount, instanceCount, firstVertex, firstInstance})
}

func (p *pass) End() error {
	if p.encoder == nil {
		// the frame pass is closed by EndFrame
		return nil
	}
	if p.ended {
		return errors.New("render pass already ended")
	}
	p.ended = true
	p.encoder.open = nil
	p.encoder.passes = append(p.encoder.passes, p.record)
	return nil
}
