package viewer

import (
	"github.com/Carmen-Shannon/oxy-ibl/engine/envsource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
)

// ViewerBuilderOption is a functional option for configuring a Viewer.
type ViewerBuilderOption func(*viewer)

// WithConfig sets the pipeline configuration. Defaults to ibl.DefaultConfig.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithConfig(cfg ibl.Config) ViewerBuilderOption {
	return func(v *viewer) {
		v.cfg = cfg
	}
}

// WithSourcePath selects the environment file to show. Without it the procedural sky is shown.
//
// Parameters:
//   - path: an image, EXR or sky description accepted by envsource.Loader
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithSourcePath(path string) ViewerBuilderOption {
	return func(v *viewer) {
		v.path = path
	}
}

// WithSky sets the procedural sky used when no source path is set.
//
// Parameters:
//   - sky: the sky parameters
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithSky(sky envsource.Sky) ViewerBuilderOption {
	return func(v *viewer) {
		v.sky = sky
	}
}

// WithFaceSize sets the face size sources are converted to.
//
// Parameters:
//   - size: edge length in texels, zero derives it from the input
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithFaceSize(size uint32) ViewerBuilderOption {
	return func(v *viewer) {
		v.faceSize = size
	}
}

// WithExposure sets the initial exposure.
//
// Parameters:
//   - exposure: linear multiplier, ignored when not positive
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithExposure(exposure float32) ViewerBuilderOption {
	return func(v *viewer) {
		if exposure > 0 {
			v.exposure = exposure
		}
	}
}

// WithMode sets the initial display mode.
//
// Parameters:
//   - m: the mode
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithMode(m Mode) ViewerBuilderOption {
	return func(v *viewer) {
		v.mode = m
	}
}
