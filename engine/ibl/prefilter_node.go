package ibl

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	attachmentGGX     = "ggx"
	attachmentCharlie = "charlie"
)

// PassesPerLevel is the number of passes one prefilter tick records.
const PassesPerLevel = common.CubeFaceCount * 2

var distributions = [2]shader.Distribution{shader.DistributionGGX, shader.DistributionCharlie}

// prefilterNode is the implementation of the PrefilterNode interface.
type prefilterNode struct {
	*rendernode.Lifecycle

	source    resource.Texture
	nc        nodeConfig
	size      uint32
	levels    uint32
	dev       renderer.Device
	variants  map[shader.Distribution][]*shader.Variant
	progress  rendernode.Progress
	bindGroup bind_group_provider.BindGroupProvider
}

// PrefilterNode convolves a resampled cubemap with the GGX and Charlie lobes, one
// roughness level per tick.
type PrefilterNode interface {
	rendernode.Node

	// Source returns the resampled cubemap being convolved.
	//
	// Returns:
	//   - resource.Texture: the source
	Source() resource.Texture

	// GGX returns the GGX cube array. Only levels below LevelsCompleted are valid.
	//
	// Returns:
	//   - resource.Texture: the texture, nil before Reconfigure
	GGX() resource.Texture

	// Charlie returns the Charlie cube array. Only levels below LevelsCompleted are valid.
	//
	// Returns:
	//   - resource.Texture: the texture, nil before Reconfigure
	Charlie() resource.Texture

	// MipLevelCount returns the number of levels the job fills. Fixed at creation.
	//
	// Returns:
	//   - uint32: the level count
	MipLevelCount() uint32

	// LevelsCompleted returns how many levels are fully prefiltered.
	//
	// Returns:
	//   - uint32: the completed level count
	LevelsCompleted() uint32

	// Roughness returns the roughness level is convolved at.
	//
	// Parameters:
	//   - level: the mip level
	//
	// Returns:
	//   - float32: level/(MipLevelCount-1), 0 for a single level
	Roughness(level uint32) float32
}

var _ PrefilterNode = &prefilterNode{}

// NewPrefilterNode creates a prefilter job over a resampled, mipmapped cubemap.
//
// Parameters:
//   - source: a color cube with a mip chain, usually ResampleNode.Output
//   - options: NodeBuilderOption values, WithSize overrides Config.PrefilterSize
//
// Returns:
//   - PrefilterNode: the unconfigured node
//   - error: ErrDepthSource, ErrInvalidSource or a level count the size cannot hold
func NewPrefilterNode(source resource.Texture, options ...NodeBuilderOption) (PrefilterNode, error) {
	if source == nil {
		return nil, ErrInvalidSource
	}
	desc := source.Descriptor()
	if desc.IsDepth() {
		return nil, fmt.Errorf("%w: %q", ErrDepthSource, desc.Label)
	}
	if !desc.IsCube() || desc.IsMultisampled() {
		return nil, fmt.Errorf("%w: %q is not a single-sampled cube", ErrInvalidSource, desc.Label)
	}

	nc := newNodeConfig("Prefilter "+desc.Label, options)
	size := common.Coalesce(nc.size, nc.cfg.PrefilterSize, desc.Width)
	levels := nc.cfg.MipLevelCount
	if levels == 0 {
		levels = common.MipLevelCount(size)
	}
	if levels > common.MipLevelCount(size) {
		return nil, fmt.Errorf("%d levels requested for a %d texel prefilter target", levels, size)
	}

	n := &prefilterNode{
		Lifecycle: rendernode.NewLifecycle(nc.label),
		source:    source,
		nc:        nc,
		size:      size,
		levels:    levels,
		progress:  rendernode.NewProgress(levels),
	}
	n.OnDestroy(n.releaseBindGroup)
	return n, nil
}

func (n *prefilterNode) Source() resource.Texture {
	return n.source
}

func (n *prefilterNode) GGX() resource.Texture {
	return n.Attachment(attachmentGGX)
}

func (n *prefilterNode) Charlie() resource.Texture {
	return n.Attachment(attachmentCharlie)
}

func (n *prefilterNode) MipLevelCount() uint32 {
	return n.levels
}

func (n *prefilterNode) LevelsCompleted() uint32 {
	return n.progress.Completed()
}

func (n *prefilterNode) Roughness(level uint32) float32 {
	return roughness(level, n.levels)
}

func (n *prefilterNode) target(d shader.Distribution) resource.Texture {
	if d == shader.DistributionCharlie {
		return n.Charlie()
	}
	return n.GGX()
}

func (n *prefilterNode) Reconfigure(dev renderer.Device) error {
	if n.Configured() && n.dev == dev {
		return nil
	}

	textures := make(map[string]resource.Texture, 2)
	for _, name := range []string{attachmentGGX, attachmentCharlie} {
		tex, err := dev.CreateTexture(resource.TextureDescriptor{
			Label:     n.Label() + " " + name,
			Width:     n.size,
			Height:    n.size,
			Layers:    common.CubeFaceCount,
			MipLevels: n.levels,
			Format:    wgpu.TextureFormatRGBA16Float,
			Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
		})
		if err != nil {
			for _, t := range textures {
				t.Release()
			}
			return &ResourceError{Node: n.Label(), Resource: name + " cube array", Err: err}
		}
		textures[name] = tex
	}

	n.dev = dev
	for name, tex := range textures {
		n.SetAttachment(name, tex)
	}

	cache := n.nc.shaderCache(dev.ShaderCache())
	n.variants = make(map[shader.Distribution][]*shader.Variant, len(distributions))
	for _, d := range distributions {
		vs := make([]*shader.Variant, n.levels)
		for level := range vs {
			vs[level] = cache.Variant(shader.KindPrefilter, PrefilterFlags(n.nc.cfg, d, uint32(level), n.levels))
		}
		n.variants[d] = vs
	}

	n.progress = rendernode.NewProgress(n.levels)
	n.Reset()
	n.MarkConfigured()
	return nil
}

// programs returns the pair of programs for level, or nil while either compiles.
func (n *prefilterNode) programs(level uint32) (map[shader.Distribution]*shader.Program, error) {
	progs := make(map[shader.Distribution]*shader.Program, len(distributions))
	for _, d := range distributions {
		prog, err := n.variants[d][level].Program()
		if errors.Is(err, shader.ErrNotReady) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		progs[d] = prog
	}
	return progs, nil
}

func (n *prefilterNode) Run(enc renderer.CommandEncoder, ctx rendernode.RunContext) error {
	if err := n.BeginRun(); err != nil {
		return err
	}
	if n.progress.Done() {
		return nil
	}

	level := n.progress.Next()
	progs, err := n.programs(level)
	if err != nil || progs == nil {
		return err
	}

	pipelines := make(map[shader.Distribution]pipeline.Pipeline, len(progs))
	for d, prog := range progs {
		p, err := n.dev.PipelineFor(prog, wgpu.TextureFormatRGBA16Float)
		if err != nil {
			return &ResourceError{Node: n.Label(), Resource: "pipeline", Err: err}
		}
		pipelines[d] = p
	}
	if err := n.initBindGroup(enc, progs[shader.DistributionGGX], level); err != nil {
		return err
	}

	for face := uint32(0); face < common.CubeFaceCount; face++ {
		for _, d := range distributions {
			p := pipelines[d]
			ctx.Pass = rendernode.Pass{Face: face, Level: level, Distribution: d}
			label := fmt.Sprintf("%s %s Level %d Face %s", n.Label(), d, level, common.CubeFace(face))
			pass, err := enc.BeginRenderPass(label, renderer.RenderTarget{Texture: n.target(d), Layer: face, Level: level})
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
	}

	frame := ctx.Frame
	n.Commit(enc, func() {
		n.progress.Advance()
		common.Logger().Debug("prefilter level submitted",
			slog.String("node", n.Label()),
			slog.Uint64("frame", frame),
			slog.Uint64("level", uint64(level)),
			slog.Float64("roughness", float64(n.Roughness(level))),
		)
		if n.progress.Done() {
			n.MarkDone()
			common.Logger().Info("prefilter complete", slog.String("node", n.Label()), slog.Uint64("levels", uint64(n.levels)))
		}
	})
	return nil
}

func (n *prefilterNode) Render(pass renderer.RenderPass, ctx rendernode.RunContext) error {
	if n.bindGroup == nil {
		return rendernode.ErrNotConfigured
	}
	pass.SetBindGroup(n.bindGroup)
	pass.Draw(3, 1, ctx.Pass.Face*3, 0)
	return nil
}

// initBindGroup binds the source and the level's parameters. The bind group lives
// until the tick's commands are submitted.
func (n *prefilterNode) initBindGroup(enc renderer.CommandEncoder, prog *shader.Program, level uint32) error {
	group, binding, ok := prog.SourceBinding()
	if !ok {
		return fmt.Errorf("prefilter program %s declares no source", prog.Key())
	}
	uGroup, uBinding, ok := prog.UniformBinding(shader.AnnotationArgPrefilterParams)
	if !ok || uGroup != group {
		return fmt.Errorf("prefilter program %s declares no parameters in group %d", prog.Key(), group)
	}
	samp, err := n.dev.Sampler(common.LinearClampSampler)
	if err != nil {
		return &ResourceError{Node: n.Label(), Resource: "sampler", Err: err}
	}

	provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s Level %d", n.Label(), level),
		bind_group_provider.WithGroup(group),
		bind_group_provider.WithTextureView(binding, resource.CubeView(n.source)),
		bind_group_provider.WithSampler(binding+1, samp),
	)
	if err := n.dev.InitBindGroup(provider, prog.Fragment().BindGroupLayoutDescriptor(group)); err != nil {
		provider.Release()
		return &ResourceError{Node: n.Label(), Resource: "bind group", Err: err}
	}

	src := n.source.Descriptor()
	params := GPUPrefilterParams{
		SourceSize:     float32(src.Width),
		SourceMipCount: float32(src.MipLevels),
		OutputSize:     float32(common.MipSize(n.size, level)),
		LODBias:        n.nc.cfg.LODBias,
	}
	if err := n.dev.WriteBuffers([]bind_group_provider.BufferWrite{bind_group_provider.UniformWrite(provider, uBinding, params.Marshal())}); err != nil {
		provider.Release()
		return err
	}

	n.releaseBindGroup()
	n.bindGroup = provider
	enc.Defer(func() {
		if n.bindGroup == provider {
			n.bindGroup = nil
		}
		provider.Release()
	})
	return nil
}

func (n *prefilterNode) releaseBindGroup() {
	if n.bindGroup != nil {
		n.bindGroup.Release()
		n.bindGroup = nil
	}
}
