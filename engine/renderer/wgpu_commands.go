package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuCommandEncoder records offscreen passes and readback copies.
type wgpuCommandEncoder struct {
	backend   *wgpuRendererBackendImpl
	label     string
	encoder   *wgpu.CommandEncoder
	readbacks []*wgpuReadback
	deferred  []func()
	submitted []func() error
	open      *wgpuRenderPass
	done      bool
}

// wgpuReadback is one staged texture copy waiting for its buffer to map.
type wgpuReadback struct {
	buffer      *wgpu.Buffer
	paddedRow   uint64
	unpaddedRow uint64
	rows        uint64
	future      *common.Future[[]byte]
}

var _ CommandEncoder = &wgpuCommandEncoder{}

func (e *wgpuCommandEncoder) BeginRenderPass(label string, target RenderTarget) (RenderPass, error) {
	if e.done {
		return nil, errors.New("command encoder already finished")
	}
	if e.open != nil {
		return nil, errors.New("previous render pass not ended")
	}
	t, err := asWGPUTexture(target.Texture)
	if err != nil {
		return nil, err
	}
	view, err := t.view(resource.LayerView(t, target.Layer, target.Level).ViewDescriptor)
	if err != nil {
		return nil, err
	}

	desc := &wgpu.RenderPassDescriptor{Label: label}
	if t.desc.IsDepth() {
		att := &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
		if target.Clear != nil {
			att.DepthLoadOp = wgpu.LoadOpClear
			att.DepthClearValue = float32(target.Clear.R)
		}
		desc.DepthStencilAttachment = att
	} else {
		att := wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if target.Clear != nil {
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = *target.Clear
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{att}
	}

	e.open = &wgpuRenderPass{pass: e.encoder.BeginRenderPass(desc), encoder: e}
	return e.open, nil
}

func (e *wgpuCommandEncoder) ReadTexture(tex resource.Texture, layer, level uint32) *common.Future[[]byte] {
	if e.done {
		return common.Rejected[[]byte](errors.New("command encoder already finished"))
	}
	t, err := asWGPUTexture(tex)
	if err != nil {
		return common.Rejected[[]byte](err)
	}
	texel, ok := resource.BytesPerTexel(t.desc.Format)
	if !ok {
		return common.Rejected[[]byte](fmt.Errorf("unsupported readback format %v", t.desc.Format))
	}
	if layer >= t.desc.Layers || level >= t.desc.MipLevels {
		return common.Rejected[[]byte](fmt.Errorf("readback of layer %d level %d out of range for %q", layer, level, t.desc.Label))
	}

	w, h := t.desc.MipSize(level)
	unpadded := uint64(w) * uint64(texel)
	align := uint64(wgpu.CopyBytesPerRowAlignment)
	padded := unpadded + (align-unpadded%align)%align
	size := padded * uint64(h)

	buf, err := e.backend.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("%s Readback L%d M%d", t.desc.Label, layer, level),
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return common.Rejected[[]byte](err)
	}

	aspect := wgpu.TextureAspectAll
	if t.desc.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	err = e.encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: level,
			Origin:   wgpu.Origin3D{Z: layer},
			Aspect:   aspect,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: buf,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(padded),
				RowsPerImage: h,
			},
		},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		buf.Release()
		return common.Rejected[[]byte](err)
	}

	rb := &wgpuReadback{
		buffer:      buf,
		paddedRow:   padded,
		unpaddedRow: unpadded,
		rows:        uint64(h),
		future:      common.NewFuture[[]byte](),
	}
	e.readbacks = append(e.readbacks, rb)
	return rb.future
}

func (e *wgpuCommandEncoder) Defer(fn func()) {
	e.deferred = append(e.deferred, fn)
}

func (e *wgpuCommandEncoder) OnSubmit(fn func() error) {
	e.submitted = append(e.submitted, fn)
}

func (e *wgpuCommandEncoder) Finish() error {
	if e.done {
		return errors.New("command encoder already finished")
	}
	e.done = true
	defer e.runDeferred()
	defer e.encoder.Release()

	if e.open != nil {
		e.abortReadbacks(errors.New("render pass not ended"))
		return errors.New("render pass not ended before finish")
	}

	commandBuffer, err := e.encoder.Finish(&wgpu.CommandBufferDescriptor{Label: e.label})
	if err != nil {
		e.abortReadbacks(err)
		return err
	}
	e.backend.queue.Submit(commandBuffer)
	commandBuffer.Release()

	for _, rb := range e.readbacks {
		rb.mapAsync()
	}
	return runSubmitted(e.submitted)
}

func (e *wgpuCommandEncoder) Discard() {
	if e.done {
		return
	}
	e.done = true
	if e.open != nil {
		e.open.pass.End()
		e.open = nil
	}
	e.abortReadbacks(errors.New("command encoder discarded"))
	e.encoder.Release()
	e.submitted = nil
	e.runDeferred()
}

// runSubmitted runs the OnSubmit functions of a submitted encoder.
func runSubmitted(fns []func() error) error {
	var errs []error
	for _, fn := range fns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *wgpuCommandEncoder) abortReadbacks(err error) {
	for _, rb := range e.readbacks {
		rb.buffer.Release()
		rb.future.Reject(err)
	}
	e.readbacks = nil
}

func (e *wgpuCommandEncoder) runDeferred() {
	for _, fn := range e.deferred {
		fn()
	}
	e.deferred = nil
}

// mapAsync maps the staging buffer and resolves the future with the unpadded rows.
// The callback runs during a later device poll.
func (rb *wgpuReadback) mapAsync() {
	size := rb.paddedRow * rb.rows
	err := rb.buffer.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		defer rb.buffer.Release()
		if status != wgpu.BufferMapAsyncStatusSuccess {
			rb.future.Reject(fmt.Errorf("buffer map failed with status %v", status))
			return
		}
		mapped := rb.buffer.GetMappedRange(0, uint(size))
		out := make([]byte, rb.unpaddedRow*rb.rows)
		for row := uint64(0); row < rb.rows; row++ {
			copy(out[row*rb.unpaddedRow:(row+1)*rb.unpaddedRow], mapped[row*rb.paddedRow:])
		}
		rb.buffer.Unmap()
		rb.future.Resolve(out)
	})
	if err != nil {
		rb.buffer.Release()
		rb.future.Reject(err)
	}
}

// wgpuRenderPass wraps an offscreen pass or the surface pass.
type wgpuRenderPass struct {
	pass    *wgpu.RenderPassEncoder
	encoder *wgpuCommandEncoder
	frame   bool
}

var _ RenderPass = &wgpuRenderPass{}

func (p *wgpuRenderPass) SetPipeline(pl pipeline.Pipeline) error {
	rp, ok := pl.Pipeline().(*wgpu.RenderPipeline)
	if !ok || rp == nil {
		return fmt.Errorf("pipeline %s is not registered", pl.PipelineKey())
	}
	p.pass.SetPipeline(rp)
	return nil
}

func (p *wgpuRenderPass) SetBindGroup(provider bind_group_provider.BindGroupProvider) {
	bg, ok := provider.BindGroup().(*wgpuBindGroup)
	if !ok {
		return
	}
	p.pass.SetBindGroup(uint32(provider.Group()), bg.group, nil)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuRenderPass) End() error {
	// The surface pass is ended by EndFrame.
	if p.frame {
		return nil
	}
	if p.encoder.open != p {
		return errors.New("render pass already ended")
	}
	p.encoder.open = nil
	p.pass.End()
	return nil
}
