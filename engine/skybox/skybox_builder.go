package skybox

// SkyboxBuilderOption is a functional option applied to a skybox during construction via NewSkybox.
type SkyboxBuilderOption func(*skybox)

// WithSampleCount sets the MSAA sample count of the color target.
//
// Parameters:
//   - count: the sample count, 1 without MSAA
//
// Returns:
//   - SkyboxBuilderOption: a function that applies the sample count
func WithSampleCount(count uint32) SkyboxBuilderOption {
	return func(s *skybox) {
		s.sampleCount = max(count, 1)
	}
}

// WithExposure sets the initial exposure.
//
// Parameters:
//   - exposure: the linear exposure scale
//
// Returns:
//   - SkyboxBuilderOption: a function that applies the exposure
func WithExposure(exposure float32) SkyboxBuilderOption {
	return func(s *skybox) {
		s.uniform.Exposure = exposure
	}
}
