package ibl

import (
	"log/slog"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
)

// orchestrator is the implementation of the Orchestrator interface.
type orchestrator struct {
	*rendernode.Lifecycle

	nc      nodeConfig
	dev     renderer.Device
	cache   *sourceCache
	lut     LUTNode
	uniform resource.Buffer

	// shared is set for orchestrators created by a System, which owns cache and lut.
	shared bool

	published atomic.Pointer[environment.Environment]
}

// Orchestrator schedules the IBL jobs of one scene's environment, one unit of work
// per tick, and publishes the result.
type Orchestrator interface {
	rendernode.Node

	// Environment returns the record published by the last submitted tick. Safe to call from
	// any goroutine.
	//
	// Returns:
	//   - *environment.Environment: the record, nil when no environment is scheduled
	Environment() *environment.Environment

	// UniformBuffer returns the buffer holding GPUEnvironmentUniform for the published record.
	//
	// Returns:
	//   - resource.Buffer: the uniform buffer, nil before Reconfigure
	UniformBuffer() resource.Buffer

	// LUT returns the BRDF lookup table node the orchestrator publishes.
	//
	// Returns:
	//   - LUTNode: the node
	LUT() LUTNode

	// Evict releases every cache entry of source. Call it before the source is destroyed.
	//
	// Parameters:
	//   - source: the raw cubemap
	Evict(source resource.Texture)

	// Stats reports the cache sizes and readback attempts.
	//
	// Returns:
	//   - Stats: the statistics
	Stats() Stats
}

var _ Orchestrator = &orchestrator{}

// NewOrchestrator creates a standalone orchestrator. It owns its caches and its own
// LUT node, allocated in Reconfigure. Use System.NewOrchestrator to share them
// between scenes.
//
// Parameters:
//   - options: NodeBuilderOption values
//
// Returns:
//   - Orchestrator: the unconfigured orchestrator
func NewOrchestrator(options ...NodeBuilderOption) Orchestrator {
	nc := newNodeConfig("Environment", options)
	o := &orchestrator{Lifecycle: rendernode.NewLifecycle(nc.label), nc: nc}
	o.OnDestroy(o.release)
	return o
}

func newSharedOrchestrator(nc nodeConfig, cache *sourceCache, lut LUTNode) *orchestrator {
	o := &orchestrator{Lifecycle: rendernode.NewLifecycle(nc.label), nc: nc, cache: cache, lut: lut, shared: true}
	o.OnDestroy(o.release)
	return o
}

func (o *orchestrator) Environment() *environment.Environment {
	return o.published.Load()
}

func (o *orchestrator) UniformBuffer() resource.Buffer {
	return o.uniform
}

func (o *orchestrator) LUT() LUTNode {
	return o.lut
}

// Done reports whether the published environment is complete. The orchestrator
// itself never reaches StateDone since the scene may switch environments.
func (o *orchestrator) Done() bool {
	env := o.Environment()
	return env != nil && env.Complete
}

func (o *orchestrator) Reconfigure(dev renderer.Device) error {
	if o.Configured() && o.dev == dev {
		return nil
	}
	var g GPUEnvironmentUniform
	buf, err := dev.CreateBuffer(o.Label()+" Uniform", uint64(g.Size()), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	if err != nil {
		return &ResourceError{Node: o.Label(), Resource: "environment uniform", Err: err}
	}

	if !o.shared {
		if o.cache != nil {
			o.cache.destroy()
		}
		cache := o.nc.shaderCache(dev.ShaderCache())
		o.cache = newSourceCache(dev, o.nc.cfg, cache)
		if o.lut == nil {
			o.lut = NewLUTNode(WithConfig(o.nc.cfg), WithShaderCache(cache))
		}
		if err := o.lut.Reconfigure(dev); err != nil {
			buf.Release()
			return err
		}
	}

	if o.uniform != nil {
		o.uniform.Release()
	}
	o.uniform = buf
	o.dev = dev
	o.MarkConfigured()
	return nil
}

func (o *orchestrator) Run(enc renderer.CommandEncoder, ctx rendernode.RunContext) error {
	if err := o.BeginRun(); err != nil {
		return err
	}
	c := o.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	// Resolve the jobs first so a rejected source fails the tick before any work
	// is recorded.
	src := ctx.Environment
	var (
		res *resampleEntry
		pre PrefilterNode
	)
	if src != nil && src.Cubemap != nil {
		var err error
		if res, pre, err = c.jobs(src.Cubemap); err != nil {
			return err
		}
	}

	if !o.lut.Done() {
		if err := o.lut.Run(enc, ctx); err != nil {
			return err
		}
	}

	if pre == nil {
		enc.OnSubmit(func() error { return o.publish(nil) })
		return nil
	}

	var (
		sh  *environment.SH
		err error
	)
	if src.Irradiance != nil {
		cp := *src.Irradiance
		sh = &cp
	}
	switch {
	case !res.node.Done():
		err = res.node.Run(enc, ctx)
	case !pre.Done():
		err = pre.Run(enc, ctx)
	case sh == nil:
		if derived := c.harmonicsFor(enc, src.Cubemap, res); derived != nil {
			cp := *derived
			sh = &cp
		}
	}
	if err != nil {
		return err
	}

	frame := ctx.Frame
	enc.OnSubmit(func() error {
		out := &environment.Environment{
			Source:        src.Cubemap,
			GGX:           pre.GGX(),
			Charlie:       pre.Charlie(),
			MipLevelCount: pre.MipLevelCount(),
			LevelsReady:   pre.LevelsCompleted(),
			SH:            sh,
		}
		if src.Bounds != nil {
			out.Localized = true
			out.Bounds = *src.Bounds
		}
		if o.lut.Done() {
			out.LUT = o.lut.Output()
		}
		out.Complete = pre.Done() && out.SH != nil && out.LUT != nil

		prev := o.Environment()
		if out.Complete && (prev == nil || !prev.Complete || prev.Source != out.Source) {
			common.Logger().Info("environment complete", slog.String("node", o.Label()), slog.String("source", src.Cubemap.Label()), slog.Uint64("frame", frame))
		}
		return o.publish(out)
	})
	return nil
}

// Render records nothing. The orchestrator's passes are recorded by its jobs.
func (o *orchestrator) Render(renderer.RenderPass, rendernode.RunContext) error {
	return nil
}

func (o *orchestrator) publish(env *environment.Environment) error {
	o.published.Store(env)
	u := NewGPUEnvironmentUniform(env)
	if err := o.dev.WriteBuffer(o.uniform, 0, u.Marshal()); err != nil {
		return &ResourceError{Node: o.Label(), Resource: "environment uniform", Err: err}
	}
	return nil
}

func (o *orchestrator) Evict(source resource.Texture) {
	if o.cache == nil {
		return
	}
	o.cache.mu.Lock()
	evicted := o.cache.evict(source)
	o.cache.mu.Unlock()
	if env := o.Environment(); env != nil && env.Source == source {
		o.published.Store(nil)
	}
	if evicted {
		common.Logger().Debug("environment source evicted", slog.String("node", o.Label()), slog.String("source", source.Label()))
	}
}

func (o *orchestrator) Stats() Stats {
	if o.cache == nil {
		return Stats{}
	}
	o.cache.mu.Lock()
	defer o.cache.mu.Unlock()
	return o.cache.stats()
}

func (o *orchestrator) release() {
	o.published.Store(nil)
	if o.uniform != nil {
		o.uniform.Release()
		o.uniform = nil
	}
	if o.shared {
		return
	}
	if o.cache != nil {
		o.cache.mu.Lock()
		o.cache.destroy()
		o.cache.mu.Unlock()
		o.cache = nil
	}
	if o.lut != nil {
		o.lut.Destroy()
	}
}
