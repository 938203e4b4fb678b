package ibl

import "github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"

// nodeConfig collects the options shared by every node of the package.
type nodeConfig struct {
	label string
	cfg   Config
	cache shader.Cache
	size  uint32
}

func newNodeConfig(label string, options []NodeBuilderOption) nodeConfig {
	nc := nodeConfig{label: label, cfg: DefaultConfig()}
	for _, opt := range options {
		opt(&nc)
	}
	return nc
}

// NodeBuilderOption is a functional option applied to a node, orchestrator or system during construction.
type NodeBuilderOption func(*nodeConfig)

// WithLabel sets the debug label.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - NodeBuilderOption: a function that applies the label
func WithLabel(label string) NodeBuilderOption {
	return func(nc *nodeConfig) {
		nc.label = label
	}
}

// WithConfig replaces the default configuration.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - NodeBuilderOption: a function that applies the configuration
func WithConfig(cfg Config) NodeBuilderOption {
	return func(nc *nodeConfig) {
		nc.cfg = cfg
	}
}

// WithShaderCache compiles variants on cache instead of the device's cache.
//
// Parameters:
//   - cache: the shader cache
//
// Returns:
//   - NodeBuilderOption: a function that applies the cache
func WithShaderCache(cache shader.Cache) NodeBuilderOption {
	return func(nc *nodeConfig) {
		nc.cache = cache
	}
}

// WithSize overrides the output face size of a single node. Ignored by the
// orchestrator and the system.
//
// Parameters:
//   - size: the size in texels
//
// Returns:
//   - NodeBuilderOption: a function that applies the size
func WithSize(size uint32) NodeBuilderOption {
	return func(nc *nodeConfig) {
		nc.size = size
	}
}

// WithSampleCounts sets the GGX and Charlie importance sample counts.
//
// Parameters:
//   - ggx: the GGX sample count
//   - charlie: the Charlie sample count
//
// Returns:
//   - NodeBuilderOption: a function that applies the sample counts
func WithSampleCounts(ggx, charlie uint32) NodeBuilderOption {
	return func(nc *nodeConfig) {
		nc.cfg.GGXSampleCount = ggx
		nc.cfg.CharlieSampleCount = charlie
	}
}

// WithMipLevelCount sets the number of prefiltered levels.
//
// Parameters:
//   - n: the level count, 0 for the full chain
//
// Returns:
//   - NodeBuilderOption: a function that applies the level count
func WithMipLevelCount(n uint32) NodeBuilderOption {
	return func(nc *nodeConfig) {
		nc.cfg.MipLevelCount = n
	}
}

func (nc nodeConfig) shaderCache(fallback shader.Cache) shader.Cache {
	if nc.cache != nil {
		return nc.cache
	}
	return fallback
}
