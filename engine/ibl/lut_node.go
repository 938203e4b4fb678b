package ibl

import (
	"errors"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
)

// lutNode is the implementation of the LUTNode interface.
type lutNode struct {
	*rendernode.Lifecycle

	nc      nodeConfig
	size    uint32
	dev     renderer.Device
	variant *shader.Variant
}

// LUTNode renders the BRDF lookup table once. Texel (n.v, roughness) holds the GGX
// scale and bias in r and g and the Charlie term in b.
type LUTNode interface {
	rendernode.Node

	// Output returns the lookup table. Valid for reading once Done.
	//
	// Returns:
	//   - resource.Texture: the table, nil before Reconfigure
	Output() resource.Texture

	// Size returns the edge length of the table.
	//
	// Returns:
	//   - uint32: the size in texels
	Size() uint32
}

var _ LUTNode = &lutNode{}

// NewLUTNode creates an unconfigured LUT node.
//
// Parameters:
//   - options: NodeBuilderOption values, WithSize overrides Config.LUTSize
//
// Returns:
//   - LUTNode: the node
func NewLUTNode(options ...NodeBuilderOption) LUTNode {
	nc := newNodeConfig("BRDF LUT", options)
	return &lutNode{
		Lifecycle: rendernode.NewLifecycle(nc.label),
		nc:        nc,
		size:      common.Coalesce(nc.size, nc.cfg.LUTSize, DefaultConfig().LUTSize),
	}
}

func (n *lutNode) Output() resource.Texture {
	return n.Attachment(attachmentOutput)
}

func (n *lutNode) Size() uint32 {
	return n.size
}

func (n *lutNode) Reconfigure(dev renderer.Device) error {
	if n.Configured() && n.dev == dev {
		return nil
	}
	tex, err := dev.CreateTexture(resource.TextureDescriptor{
		Label:  n.Label(),
		Width:  n.size,
		Height: n.size,
		Format: wgpu.TextureFormatRGBA16Float,
		Usage:  wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return &ResourceError{Node: n.Label(), Resource: "lookup table", Err: err}
	}
	n.dev = dev
	n.SetAttachment(attachmentOutput, tex)
	n.variant = n.nc.shaderCache(dev.ShaderCache()).Variant(shader.KindLUT, LUTFlags(n.nc.cfg))
	n.Reset()
	n.MarkConfigured()
	return nil
}

func (n *lutNode) Run(enc renderer.CommandEncoder, ctx rendernode.RunContext) error {
	if err := n.BeginRun(); err != nil {
		return err
	}
	if n.Done() {
		return nil
	}
	prog, err := n.variant.Program()
	if errors.Is(err, shader.ErrNotReady) {
		return nil
	}
	if err != nil {
		return err
	}
	p, err := n.dev.PipelineFor(prog, wgpu.TextureFormatRGBA16Float)
	if err != nil {
		return &ResourceError{Node: n.Label(), Resource: "pipeline", Err: err}
	}

	ctx.Pass = rendernode.Pass{}
	pass, err := enc.BeginRenderPass(n.Label(), renderer.RenderTarget{Texture: n.Output()})
	if err != nil {
		return err
	}
	if err := pass.SetPipeline(p); err != nil {
		return err
	}
	if err := n.Render(pass, ctx); err != nil {
		return err
	}
	if err := pass.End(); err != nil {
		return err
	}

	frame := ctx.Frame
	n.Commit(enc, func() {
		n.MarkDone()
		common.Logger().Info("brdf lut submitted", slog.String("node", n.Label()), slog.Uint64("frame", frame), slog.Uint64("size", uint64(n.size)))
	})
	return nil
}

func (n *lutNode) Render(pass renderer.RenderPass, _ rendernode.RunContext) error {
	pass.Draw(3, 1, 0, 0)
	return nil
}
