package envsource

import "github.com/Carmen-Shannon/oxy-ibl/engine/renderer"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithDevice is an option builder that sets the device LoadTexture uploads to.
//
// Parameters:
//   - dev: the device
//
// Returns:
//   - LoaderBuilderOption: a function that applies the device option to a loader
func WithDevice(dev renderer.Device) LoaderBuilderOption {
	return func(l *loader) {
		l.device = dev
	}
}

// WithFaceSize is an option builder that sets the face size every file is resampled to.
//
// Parameters:
//   - size: the face size, zero derives it from each file
//
// Returns:
//   - LoaderBuilderOption: a function that applies the size option to a loader
func WithFaceSize(size uint32) LoaderBuilderOption {
	return func(l *loader) {
		l.size = size
	}
}

// WithCubemap is an option builder that pre-populates the cache with a cubemap,
// typically a procedural sky.
//
// Parameters:
//   - key: the cache key for the cubemap
//   - c: the cubemap to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cubemap option to a loader
func WithCubemap(key string, c *Cubemap) LoaderBuilderOption {
	return func(l *loader) {
		l.cubemaps[key] = c
	}
}
