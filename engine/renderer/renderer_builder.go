package renderer

import (
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
)

// RendererBuilderOption configures a device during construction.
type RendererBuilderOption func(*renderer)

// WithShaderCache shares one program cache between devices, so a bake and a
// viewer in the same process compile each variant once. Defaults to a new WGSL cache.
//
// Parameters:
//   - cache: the cache to share
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithShaderCache(cache shader.Cache) RendererBuilderOption {
	return func(r *renderer) {
		r.shaderCache = cache
	}
}

// WithPresentMode picks VSync or Uncapped presentation. Headless devices ignore it.
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA multisamples the frame pass the skybox draws into. Offscreen IBL
// targets are always single-sampled.
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer requests the fallback adapter. A software Vulkan ICD
// such as lavapipe must be installed; iblbake uses it on machines without a GPU.
//
// Parameters:
//   - force: true for the fallback adapter
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}
