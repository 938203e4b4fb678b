// Package environment holds the records exchanged between the scene, the IBL
// pipeline and shading: the scene-supplied Source and the published Environment.
package environment

import (
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
)

// SH holds 9 RGB spherical-harmonics coefficients in band order
// (L00, L1-1, L10, L11, L2-2, L2-1, L20, L21, L22).
type SH [9][3]float32

// Bounds is an axis-aligned box in world space.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Source is the environment a scene supplies for one tick.
type Source struct {
	// Cubemap is the raw cubemap. The pipeline keys its caches by this handle.
	Cubemap resource.Texture

	// Irradiance holds coefficients precomputed offline. When set, no readback is made.
	Irradiance *SH

	// Bounds marks the environment as localized to a box when non-nil.
	Bounds *Bounds
}

// Environment is the record published to shading. A published Environment is never
// modified; the orchestrator publishes a new one every tick.
type Environment struct {
	// Source is the raw cubemap this record was derived from.
	Source resource.Texture

	// GGX and Charlie are the prefiltered radiance cube arrays. Level l holds the
	// convolution at roughness l/(MipLevelCount-1).
	GGX     resource.Texture
	Charlie resource.Texture

	// MipLevelCount is fixed when the prefilter job is created.
	MipLevelCount uint32

	// LevelsReady is the number of leading levels that are fully prefiltered.
	LevelsReady uint32

	// LUT is the shared BRDF lookup table, or nil until it has been generated.
	LUT resource.Texture

	// SH is nil until the irradiance has been supplied or derived.
	SH *SH

	Localized bool
	Bounds    Bounds

	// Complete is set once every level is prefiltered, SH is known and the LUT is recorded.
	Complete bool
}

// MaxSampleLevel reports the highest level a consumer may sample.
//
// Returns:
//   - uint32: LevelsReady-1
//   - bool: false while no level is ready
func (e *Environment) MaxSampleLevel() (uint32, bool) {
	if e == nil || e.LevelsReady == 0 {
		return 0, false
	}
	return e.LevelsReady - 1, true
}

// Clone returns a deep copy of e. Texture handles are shared.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	c := *e
	if e.SH != nil {
		sh := *e.SH
		c.SH = &sh
	}
	return &c
}
