package shader

import (
	_ "embed"
)

// Formula library chunks, injected by //@oxy:include.

//go:embed assets/fullscreen.wgsl
var fullscreenSource string

//go:embed assets/cube.wgsl
var cubeSource string

//go:embed assets/sampling.wgsl
var samplingSource string

//go:embed assets/brdf.wgsl
var brdfSource string

// GPU struct sources. The Go side of each layout lives next to the code that
// writes the buffer and must match field for field.

//go:embed assets/prefilter_params.wgsl
var PrefilterParamsSource string

//go:embed assets/skybox_uniform.wgsl
var SkyboxUniformSource string

//go:embed assets/environment_uniform.wgsl
var EnvironmentUniformSource string

// Program templates, one per Kind.

//go:embed assets/resample.wgsl
var resampleTemplate string

//go:embed assets/prefilter.wgsl
var prefilterTemplate string

//go:embed assets/lut.wgsl
var lutTemplate string

//go:embed assets/mipmap.wgsl
var mipmapTemplate string

//go:embed assets/skybox.wgsl
var skyboxTemplate string

var templates = map[Kind]string{
	KindResample:  resampleTemplate,
	KindPrefilter: prefilterTemplate,
	KindLUT:       lutTemplate,
	KindMipmap:    mipmapTemplate,
	KindSkybox:    skyboxTemplate,
}

// Template returns the annotated WGSL template a Kind is generated from.
//
// Parameters:
//   - kind: the program kind
//
// Returns:
//   - string: the raw template source
//   - bool: false if no template is registered for kind
func Template(kind Kind) (string, bool) {
	src, ok := templates[kind]
	return src, ok
}
