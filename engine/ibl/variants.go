package ibl

import (
	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// roughness maps level to its perceptual roughness in a chain of levels.
func roughness(level, levels uint32) float32 {
	if levels <= 1 {
		return 0
	}
	return float32(level) / float32(levels-1)
}

// PrefilterFlags returns the flags of the variant that convolves level with d.
//
// Parameters:
//   - cfg: the configuration holding the sample counts
//   - d: the distribution
//   - level, levels: the level and the chain length
//
// Returns:
//   - shader.Flags: the variant flags
func PrefilterFlags(cfg Config, d shader.Distribution, level, levels uint32) shader.Flags {
	n := common.Coalesce(cfg.GGXSampleCount, DefaultConfig().GGXSampleCount)
	if d == shader.DistributionCharlie {
		n = common.Coalesce(cfg.CharlieSampleCount, DefaultConfig().CharlieSampleCount)
	}
	return shader.Flags{
		View:         shader.ViewCube,
		Distribution: d,
		Roughness:    roughness(level, levels),
		SampleCount:  n,
	}
}

// LUTFlags returns the flags of the lookup table variant.
func LUTFlags(cfg Config) shader.Flags {
	return shader.Flags{
		View:        shader.View2D,
		SampleCount: common.Coalesce(cfg.LUTSampleCount, DefaultConfig().LUTSampleCount),
	}
}

// RequestVariants requests every program the pipeline compiles for sources read
// through source, including the lookup table. Compilation starts in the background.
//
// Parameters:
//   - cache: the cache to request from
//   - cfg: the pipeline configuration
//   - source: the resample flags of the source, see SourceFlags
//
// Returns:
//   - []*shader.Variant: the requested variants
func RequestVariants(cache shader.Cache, cfg Config, source shader.Flags) []*shader.Variant {
	format := wgpu.TextureFormatRGBA16Float
	if source.Depth {
		format = wgpu.TextureFormatDepth32Float
	}
	out := []*shader.Variant{
		cache.Variant(shader.KindResample, source),
		cache.Variant(shader.KindMipmap, renderer.MipmapFlags(resource.TextureDescriptor{Format: format})),
		cache.Variant(shader.KindLUT, LUTFlags(cfg)),
	}
	if source.Depth {
		return out
	}
	levels := cfg.MipLevels()
	for _, d := range distributions {
		for level := uint32(0); level < levels; level++ {
			out = append(out, cache.Variant(shader.KindPrefilter, PrefilterFlags(cfg, d, level, levels)))
		}
	}
	return out
}
