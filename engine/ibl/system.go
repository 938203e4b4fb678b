package ibl

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
)

// system is the implementation of the System interface.
type system struct {
	mu *sync.Mutex

	dev   renderer.Device
	nc    nodeConfig
	cache *sourceCache
	lut   LUTNode

	orchestrators []*orchestrator
	frame         uint64
	destroyed     bool
}

// System owns the state shared by every orchestrator on a device: the per-source
// caches and the BRDF lookup table. Scenes that reference the same cubemap share
// its jobs.
type System interface {
	// Device returns the device the system records onto.
	//
	// Returns:
	//   - renderer.Device: the device
	Device() renderer.Device

	// Config returns the configuration every job is created with.
	//
	// Returns:
	//   - Config: the configuration
	Config() Config

	// LUT returns the shared BRDF lookup table node.
	//
	// Returns:
	//   - LUTNode: the node
	LUT() LUTNode

	// NewOrchestrator creates a configured orchestrator sharing the system's caches.
	//
	// Parameters:
	//   - label: a debug label
	//
	// Returns:
	//   - Orchestrator: the orchestrator
	//   - error: a *ResourceError if its uniform buffer cannot be allocated
	NewOrchestrator(label string) (Orchestrator, error)

	// Tick runs o once for src on a fresh command encoder, submits the commands and
	// polls the device. A failing tick discards its commands.
	//
	// Parameters:
	//   - o: an orchestrator created by this system
	//   - src: the scene's environment, or nil
	//
	// Returns:
	//   - *environment.Environment: the record published by the tick
	//   - error: the error that aborted the tick
	Tick(o Orchestrator, src *environment.Source) (*environment.Environment, error)

	// Frame returns the number of ticks run so far.
	//
	// Returns:
	//   - uint64: the tick count
	Frame() uint64

	// Evict releases every cache entry of source.
	//
	// Parameters:
	//   - source: the raw cubemap
	Evict(source resource.Texture)

	// Stats reports the shared cache sizes.
	//
	// Returns:
	//   - Stats: the statistics
	Stats() Stats

	// Destroy releases the caches, the lookup table and every orchestrator. Idempotent.
	Destroy()
}

var _ System = &system{}

// NewSystem creates a system and allocates its lookup table.
//
// Parameters:
//   - dev: the device every job records onto
//   - options: NodeBuilderOption values
//
// Returns:
//   - System: the system
//   - error: a configuration error or a *ResourceError
func NewSystem(dev renderer.Device, options ...NodeBuilderOption) (System, error) {
	nc := newNodeConfig("IBL", options)
	if err := nc.cfg.Validate(); err != nil {
		return nil, err
	}
	cache := nc.shaderCache(dev.ShaderCache())
	nc.cache = cache

	lut := NewLUTNode(WithConfig(nc.cfg), WithShaderCache(cache))
	if err := lut.Reconfigure(dev); err != nil {
		return nil, err
	}
	return &system{
		mu:    &sync.Mutex{},
		dev:   dev,
		nc:    nc,
		cache: newSourceCache(dev, nc.cfg, cache),
		lut:   lut,
	}, nil
}

func (s *system) Device() renderer.Device {
	return s.dev
}

func (s *system) Config() Config {
	return s.nc.cfg
}

func (s *system) LUT() LUTNode {
	return s.lut
}

func (s *system) NewOrchestrator(label string) (Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrSystemDestroyed
	}
	nc := s.nc
	nc.label = label
	o := newSharedOrchestrator(nc, s.cache, s.lut)
	if err := o.Reconfigure(s.dev); err != nil {
		return nil, err
	}
	s.orchestrators = append(s.orchestrators, o)
	return o, nil
}

func (s *system) Tick(o Orchestrator, src *environment.Source) (*environment.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrSystemDestroyed
	}

	s.frame++
	enc, err := s.dev.BeginCommands(fmt.Sprintf("%s Tick %d", s.nc.label, s.frame))
	if err != nil {
		return o.Environment(), err
	}
	if err := o.Run(enc, rendernode.RunContext{Frame: s.frame, Environment: src}); err != nil {
		enc.Discard()
		s.dev.Poll()
		return o.Environment(), err
	}
	if err := enc.Finish(); err != nil {
		return o.Environment(), fmt.Errorf("failed to finish %s tick %d: %w", s.nc.label, s.frame, err)
	}
	s.dev.Poll()
	return o.Environment(), nil
}

func (s *system) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *system) Evict(source resource.Texture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orchestrators {
		o.Evict(source)
	}
	s.cache.mu.Lock()
	s.cache.evict(source)
	s.cache.mu.Unlock()
}

func (s *system) Stats() Stats {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	return s.cache.stats()
}

func (s *system) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	for _, o := range s.orchestrators {
		o.Destroy()
	}
	s.orchestrators = nil
	s.cache.mu.Lock()
	s.cache.destroy()
	s.cache.mu.Unlock()
	s.lut.Destroy()
}
