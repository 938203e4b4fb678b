package ibl

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
)

const attachmentOutput = "output"

// ResampleMetadata describes the conversion a ResampleNode performs.
type ResampleMetadata struct {
	SourceFormat  wgpu.TextureFormat
	SourceSize    uint32
	OutputFormat  wgpu.TextureFormat
	Size          uint32
	MipLevelCount uint32
	Flags         shader.Flags
}

// resampleNode is the implementation of the ResampleNode interface.
type resampleNode struct {
	*rendernode.Lifecycle

	source   resource.Texture
	meta     ResampleMetadata
	nc       nodeConfig
	dev      renderer.Device
	variant  *shader.Variant
	mipmaps  *shader.Variant
	progress rendernode.Progress

	// providers holds one bind group for cube and array sources, one per face for
	// sources read as plain 2D layers.
	providers []bind_group_provider.BindGroupProvider
}

// ResampleNode converts an arbitrary cubemap into the canonical working format: a
// six-layer texture with a full mip chain. It is single-shot.
type ResampleNode interface {
	rendernode.Node

	// Source returns the texture being resampled.
	//
	// Returns:
	//   - resource.Texture: the source
	Source() resource.Texture

	// Output returns the resampled cubemap. Valid for reading once Done.
	//
	// Returns:
	//   - resource.Texture: the output, nil before Reconfigure
	Output() resource.Texture

	// Metadata returns the source format, output size and mip count.
	//
	// Returns:
	//   - ResampleMetadata: the metadata
	Metadata() ResampleMetadata
}

var _ ResampleNode = &resampleNode{}

// SourceFlags selects the resample variant that reads a texture described by desc.
//
// Parameters:
//   - desc: the source texture description
//
// Returns:
//   - shader.Flags: the view, multisample and depth flags
func SourceFlags(desc resource.TextureDescriptor) shader.Flags {
	f := shader.Flags{Depth: desc.IsDepth()}
	switch {
	case desc.IsMultisampled():
		f.View = shader.View2D
		f.Multisampled = true
	case desc.IsCube():
		f.View = shader.ViewCube
	default:
		f.View = shader.View2DArray
	}
	return f
}

// NewResampleNode creates a resample node for source.
//
// Parameters:
//   - source: a texture with at least six layers
//   - options: NodeBuilderOption values, WithSize overrides Config.ResampleSize
//
// Returns:
//   - ResampleNode: the unconfigured node
//   - error: ErrInvalidSource for textures that are not six faces
func NewResampleNode(source resource.Texture, options ...NodeBuilderOption) (ResampleNode, error) {
	if source == nil {
		return nil, ErrInvalidSource
	}
	desc := source.Descriptor()
	if desc.Layers < common.CubeFaceCount {
		return nil, fmt.Errorf("%w: %q has %d layers", ErrInvalidSource, desc.Label, desc.Layers)
	}

	nc := newNodeConfig("Resample "+desc.Label, options)
	size := common.Coalesce(nc.size, nc.cfg.ResampleSize, desc.Width)
	format := wgpu.TextureFormatRGBA16Float
	if desc.IsDepth() {
		format = wgpu.TextureFormatDepth32Float
	}

	n := &resampleNode{
		Lifecycle: rendernode.NewLifecycle(nc.label),
		source:    source,
		nc:        nc,
		meta: ResampleMetadata{
			SourceFormat:  desc.Format,
			SourceSize:    desc.Width,
			OutputFormat:  format,
			Size:          size,
			MipLevelCount: common.MipLevelCount(size),
			Flags:         SourceFlags(desc),
		},
	}
	n.OnDestroy(n.releaseBindGroups)
	return n, nil
}

func (n *resampleNode) Source() resource.Texture {
	return n.source
}

func (n *resampleNode) Output() resource.Texture {
	return n.Attachment(attachmentOutput)
}

func (n *resampleNode) Metadata() ResampleMetadata {
	return n.meta
}

func (n *resampleNode) outputDescriptor() resource.TextureDescriptor {
	return resource.TextureDescriptor{
		Label:     n.Label() + " Output",
		Width:     n.meta.Size,
		Height:    n.meta.Size,
		Layers:    common.CubeFaceCount,
		MipLevels: n.meta.MipLevelCount,
		Format:    n.meta.OutputFormat,
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	}
}

func (n *resampleNode) Reconfigure(dev renderer.Device) error {
	if n.Configured() && n.dev == dev {
		return nil
	}
	desc := n.outputDescriptor()
	tex, err := dev.CreateTexture(desc)
	if err != nil {
		return &ResourceError{Node: n.Label(), Resource: "output cubemap", Err: err}
	}

	n.releaseBindGroups()
	n.dev = dev
	n.SetAttachment(attachmentOutput, tex)
	n.variant = n.nc.shaderCache(dev.ShaderCache()).Variant(shader.KindResample, n.meta.Flags)
	n.mipmaps = dev.ShaderCache().Variant(shader.KindMipmap, renderer.MipmapFlags(desc))
	n.progress = rendernode.NewProgress(1)
	n.Reset()
	n.MarkConfigured()
	return nil
}

func (n *resampleNode) Run(enc renderer.CommandEncoder, ctx rendernode.RunContext) error {
	if err := n.BeginRun(); err != nil {
		return err
	}
	if n.progress.Done() {
		return nil
	}

	prog, err := n.variant.Program()
	if errors.Is(err, shader.ErrNotReady) || !n.mipmaps.Ready() {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := n.mipmaps.Program(); err != nil {
		return err
	}

	out := n.Output()
	p, err := n.dev.PipelineFor(prog, n.meta.OutputFormat)
	if err != nil {
		return &ResourceError{Node: n.Label(), Resource: "pipeline", Err: err}
	}
	if err := n.initBindGroups(prog); err != nil {
		return err
	}

	for face := uint32(0); face < common.CubeFaceCount; face++ {
		ctx.Pass = rendernode.Pass{Face: face}
		pass, err := enc.BeginRenderPass(fmt.Sprintf("%s Face %s", n.Label(), common.CubeFace(face)), renderer.RenderTarget{Texture: out, Layer: face})
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
	}
	if err := n.dev.GenerateMipmaps(enc, out); err != nil {
		return fmt.Errorf("failed to generate mipmaps for %s: %w", n.Label(), err)
	}

	frame := ctx.Frame
	n.Commit(enc, func() {
		n.progress.Advance()
		n.MarkDone()
		common.Logger().Info("cubemap resampled",
			slog.String("node", n.Label()),
			slog.Uint64("frame", frame),
			slog.Uint64("size", uint64(n.meta.Size)),
			slog.Uint64("levels", uint64(n.meta.MipLevelCount)),
		)
	})
	return nil
}

func (n *resampleNode) Render(pass renderer.RenderPass, ctx rendernode.RunContext) error {
	switch len(n.providers) {
	case 0:
		return rendernode.ErrNotConfigured
	case 1:
		pass.SetBindGroup(n.providers[0])
	default:
		pass.SetBindGroup(n.providers[ctx.Pass.Face])
	}
	pass.Draw(3, 1, ctx.Pass.Face*3, 0)
	return nil
}

func (n *resampleNode) initBindGroups(prog *shader.Program) error {
	if n.providers != nil {
		return nil
	}
	group, binding, ok := prog.SourceBinding()
	if !ok {
		return fmt.Errorf("resample program %s declares no source", prog.Key())
	}
	samplerData := common.LinearClampSampler
	if n.meta.Flags.Depth {
		samplerData = common.NearestClampSampler
	}
	samp, err := n.dev.Sampler(samplerData)
	if err != nil {
		return &ResourceError{Node: n.Label(), Resource: "sampler", Err: err}
	}

	var views []resource.TextureView
	switch n.meta.Flags.View {
	case shader.ViewCube:
		views = []resource.TextureView{resource.CubeView(n.source)}
	case shader.View2DArray:
		views = []resource.TextureView{resource.ArrayView(n.source)}
	default:
		for face := uint32(0); face < common.CubeFaceCount; face++ {
			views = append(views, resource.LayerView(n.source, face, 0))
		}
	}

	layout := prog.Fragment().BindGroupLayoutDescriptor(group)
	providers := make([]bind_group_provider.BindGroupProvider, 0, len(views))
	for i, view := range views {
		provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s Source %d", n.Label(), i),
			bind_group_provider.WithGroup(group),
			bind_group_provider.WithTextureView(binding, view),
			bind_group_provider.WithSampler(binding+1, samp),
		)
		if err := n.dev.InitBindGroup(provider, layout); err != nil {
			for _, p := range providers {
				p.Release()
			}
			return &ResourceError{Node: n.Label(), Resource: "bind group", Err: err}
		}
		providers = append(providers, provider)
	}
	n.providers = providers
	return nil
}

func (n *resampleNode) releaseBindGroups() {
	for _, p := range n.providers {
		p.Release()
	}
	n.providers = nil
}
